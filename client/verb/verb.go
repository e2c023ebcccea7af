// Package verb defines the closed set of HTTP methods a route can use and
// the request data placement each one implies.
package verb

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknown = errors.New("unknown http method")

// Method is an HTTP verb. The zero value is not a valid method.
type Method uint8

const (
	Get Method = iota + 1
	Post
	Put
	Delete
	Options
	Patch
	Connect
	Trace
)

var names = [...]string{
	Get:     "GET",
	Post:    "POST",
	Put:     "PUT",
	Delete:  "DELETE",
	Options: "OPTIONS",
	Patch:   "PATCH",
	Connect: "CONNECT",
	Trace:   "TRACE",
}

// Parse maps a verb to its Method, ignoring case and surrounding space.
func Parse(s string) (Method, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for m := Get; m <= Trace; m++ {
		if names[m] == upper {
			return m, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknown, s)
}

// String returns the upper-case verb.
func (m Method) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Method(%d)", uint8(m))
	}

	return names[m]
}

func (m Method) Valid() bool {
	return m >= Get && m <= Trace
}

// HasBody reports whether request data for m travels in a JSON body
// rather than the query string.
func (m Method) HasBody() bool {
	switch m {
	case Post, Put, Patch:
		return true
	case Get, Delete, Options, Connect, Trace:
		return false
	default:
		return false
	}
}

func (m Method) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, uint8(m))
	}

	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = parsed

	return nil
}
