// Package body turns the request data left over after path compilation
// into either a request payload or query parameters.
//
// The encoding is picked in this order:
//
//  1. A Content-Type header of multipart/form-data produces a multipart
//     payload. Nested values are flattened into bracketed field names and
//     [File] values become file parts.
//  2. Methods whose [verb.Method.HasBody] is true (POST, PUT and PATCH)
//     produce a JSON payload and set Content-Type: application/json.
//  3. Anything else produces query parameters and no payload.
package body

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/adamwoolhether/routefetch/client/reqconf"
	"github.com/adamwoolhether/routefetch/client/verb"
	"github.com/adamwoolhether/routefetch/internal/coerce"
)

const (
	MediaJSON      = "application/json"
	MediaMultipart = "multipart/form-data"
)

var ErrFileOutsideMultipart = errors.New("file values require a multipart/form-data request")

// File is an upload attached to a multipart request.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// MarshalJSON rejects files, which only have a multipart encoding.
func (File) MarshalJSON() ([]byte, error) {
	return nil, ErrFileOutsideMultipart
}

// Encoded is the wire form of the residual request data. At most one of
// Body and Query carries content.
type Encoded struct {
	Body  *reqconf.Body
	Query url.Values
}

// Encode chooses an encoding for residual based on headers and method. The
// returned header set is the one to send; headers itself is not modified.
func Encode(method verb.Method, headers reqconf.Headers, residual map[string]any) (Encoded, reqconf.Headers, error) {
	if IsMultipart(headers.Get("Content-Type")) {
		b, err := encodeMultipart(residual)
		if err != nil {
			return Encoded{}, headers, err
		}
		return Encoded{Body: b, Query: url.Values{}}, headers, nil
	}

	if method.HasBody() {
		if residual == nil {
			residual = map[string]any{}
		}
		data, err := json.Marshal(residual)
		if err != nil {
			return Encoded{}, headers, fmt.Errorf("encoding json body: %w", err)
		}
		return Encoded{Body: reqconf.NewBody(data, ""), Query: url.Values{}}, headers.Set("Content-Type", MediaJSON), nil
	}

	q := url.Values{}
	for _, k := range slices.Sorted(maps.Keys(residual)) {
		if err := addQuery(q, k, residual[k]); err != nil {
			return Encoded{}, headers, err
		}
	}

	return Encoded{Query: q}, headers, nil
}

// IsMultipart reports whether contentType names multipart/form-data,
// ignoring case and parameters.
func IsMultipart(contentType string) bool {
	return mediaType(contentType) == MediaMultipart
}

// IsJSON reports whether contentType names application/json, ignoring
// case and parameters.
func IsJSON(contentType string) bool {
	return mediaType(contentType) == MediaJSON
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
		return strings.ToLower(strings.TrimSpace(mt))
	}

	return mt
}

// =============================================================================

func addQuery(q url.Values, key string, v any) error {
	switch val := v.(type) {
	case nil:
		return nil
	case File, *File:
		return fmt.Errorf("query parameter %q: %w", key, ErrFileOutsideMultipart)
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(val)) {
			if err := addQuery(q, key+"["+k+"]", val[k]); err != nil {
				return err
			}
		}
	case map[string]string:
		for _, k := range slices.Sorted(maps.Keys(val)) {
			q.Add(key+"["+k+"]", val[k])
		}
	case []string:
		for _, s := range val {
			q.Add(key, s)
		}
	case []any:
		for i, item := range val {
			switch item.(type) {
			case nil:
			case map[string]any, map[string]string, []any, []string:
				if err := addQuery(q, key+"["+strconv.Itoa(i)+"]", item); err != nil {
					return err
				}
			default:
				if err := addQuery(q, key, item); err != nil {
					return err
				}
			}
		}
	default:
		q.Add(key, coerce.String(val))
	}

	return nil
}

// =============================================================================

func encodeMultipart(residual map[string]any) (*reqconf.Body, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, k := range slices.Sorted(maps.Keys(residual)) {
		if err := writeField(w, k, residual[k]); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	return reqconf.NewBody(buf.Bytes(), w.FormDataContentType()), nil
}

func writeField(w *multipart.Writer, key string, v any) error {
	switch val := v.(type) {
	case nil:
		return nil
	case *File:
		if val == nil {
			return nil
		}
		return writeFile(w, key, *val)
	case File:
		return writeFile(w, key, val)
	case bool:
		s := "0"
		if val {
			s = "1"
		}
		return w.WriteField(key, s)
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(val)) {
			if err := writeField(w, key+"["+k+"]", val[k]); err != nil {
				return err
			}
		}
		return nil
	case map[string]string:
		for _, k := range slices.Sorted(maps.Keys(val)) {
			if err := w.WriteField(key+"["+k+"]", val[k]); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for i, item := range val {
			if err := writeField(w, key+"["+strconv.Itoa(i)+"]", item); err != nil {
				return err
			}
		}
		return nil
	case []string:
		for i, s := range val {
			if err := w.WriteField(key+"["+strconv.Itoa(i)+"]", s); err != nil {
				return err
			}
		}
		return nil
	default:
		return w.WriteField(key, coerce.String(val))
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFile(w *multipart.Writer, key string, f File) error {
	name := f.Name
	if name == "" {
		name = "blob"
	}
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(key), quoteEscaper.Replace(name)))
	h.Set("Content-Type", ct)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("creating file part %q: %w", key, err)
	}
	if f.Content == nil {
		return nil
	}
	if _, err := io.Copy(part, f.Content); err != nil {
		return fmt.Errorf("writing file part %q: %w", key, err)
	}

	return nil
}
