// Package coerce converts loosely typed request data into the string and
// object forms the request pipeline writes onto the wire.
package coerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// String renders a scalar the way it appears in a path segment or query
// value. Numbers keep their shortest exact form, so 0 renders as "0".
func String(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", val)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Object normalizes request data into a fresh string-keyed map. Maps of
// type map[string]any are shallow-copied; anything else, such as a tagged
// struct, goes through a JSON round trip with numbers kept as
// json.Number. A nil value yields an empty map.
func Object(data any) (map[string]any, error) {
	switch val := data.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = v
		}
		return out, nil
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = v
		}
		return out, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding request data: %w", err)
	}

	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()

	var out map[string]any
	if err := d.Decode(&out); err != nil {
		return nil, fmt.Errorf("request data must encode to a JSON object: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}

	return out, nil
}
