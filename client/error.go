package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/adamwoolhether/routefetch/client/body"
	"github.com/adamwoolhether/routefetch/client/reqconf"
	"github.com/adamwoolhether/routefetch/client/transport"
	"github.com/tidwall/gjson"
)

// maxErrBodySize bounds how much of an error response is kept.
const maxErrBodySize = 1 << 20

var (
	// ErrUnexpectedStatusCode is the sentinel error wrapped by [ResponseError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrAuthFailure is also matched by a [ResponseError] for
	// 401 Unauthorized or 403 Forbidden.
	ErrAuthFailure = errors.New("auth failure")
)

// ResponseError is returned for a response outside the 2xx range. It is a
// snapshot: the response body has already been read into Body, decoded as
// JSON when the response declared application/json and kept as a string
// otherwise. A body over 1 MiB is cut there, kept as a string whatever its
// type, and flagged Truncated.
type ResponseError struct {
	Header     reqconf.Headers
	OK         bool
	Redirected bool
	Status     int
	StatusText string
	Type       string
	URL        string
	Body       any
	Truncated  bool

	raw []byte
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%v: %d %s from %s", ErrUnexpectedStatusCode, e.Status, e.StatusText, e.URL)
}

func (e *ResponseError) Unwrap() []error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return []error{ErrUnexpectedStatusCode, ErrAuthFailure}
	}

	return []error{ErrUnexpectedStatusCode}
}

// Lookup queries a JSON error body with a gjson path such as
// "errors.0.message". The result does not exist for a text body.
func (e *ResponseError) Lookup(path string) gjson.Result {
	if _, isText := e.Body.(string); isText || len(e.raw) == 0 {
		return gjson.Result{}
	}

	return gjson.GetBytes(e.raw, path)
}

// newResponseError reads resp's body into a ResponseError. A JSON body that
// fails to decode is returned as the error instead.
func newResponseError(resp *transport.Response) error {
	raw, truncated, err := readErrBody(resp)
	if err != nil {
		return fmt.Errorf("reading %d response: %w", resp.Status, err)
	}

	re := ResponseError{
		Header:     resp.Header,
		OK:         resp.OK,
		Redirected: resp.Redirected,
		Status:     resp.Status,
		StatusText: resp.StatusText,
		Type:       resp.Type,
		URL:        resp.URL,
		Truncated:  truncated,
	}

	if truncated || !body.IsJSON(resp.Header.Get("Content-Type")) {
		re.Body = string(raw)
		return &re
	}

	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &re.Body); err != nil {
			return fmt.Errorf("decoding %d json error body: %w", resp.Status, err)
		}
		re.raw = raw
	}

	return &re
}

func readErrBody(resp *transport.Response) ([]byte, bool, error) {
	rc, err := resp.Body()
	if err != nil {
		return nil, false, err
	}
	defer rc.Close()

	raw, err := io.ReadAll(io.LimitReader(rc, maxErrBodySize+1))
	if err != nil {
		return nil, false, err
	}
	if len(raw) > maxErrBodySize {
		return raw[:maxErrBodySize], true, nil
	}

	return raw, false, nil
}
