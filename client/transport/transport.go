// Package transport performs a fully merged request and normalizes the
// outcome into a [Response], whichever transport carried it.
//
// Two transports are provided. [Stream] issues the request with an
// [http.Client] and streams the response body, buffering it only when
// download progress is requested. [Event] drives an event-based request
// object and additionally reports upload progress.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/adamwoolhether/routefetch/client/reqconf"
)

var (
	ErrAborted  = errors.New("request aborted")
	ErrBodyUsed = errors.New("response body already used")
	ErrRedirect = errors.New("redirect not allowed")
)

// NetworkError reports a request that never produced a response.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network failure: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Transport executes a merged request against an absolute URL.
type Transport interface {
	Execute(ctx context.Context, url string, init reqconf.Init) (*Response, error)
}

// Response types.
const (
	TypeBasic          = "basic"
	TypeDefault        = "default"
	TypeOpaqueRedirect = "opaqueredirect"
)

// Response is the normalized outcome of a request. Its body can be
// consumed once, through any one of Body, Bytes, Text or JSON.
type Response struct {
	Status     int
	StatusText string
	OK         bool
	Redirected bool
	Type       string
	URL        string
	Header     reqconf.Headers

	body io.ReadCloser
	used atomic.Bool
}

// NewResponse builds a Response over body. A nil body reads as empty.
func NewResponse(status int, statusText, url string, header reqconf.Headers, body io.Reader) *Response {
	rc, ok := body.(io.ReadCloser)
	if !ok {
		if body == nil {
			body = strings.NewReader("")
		}
		rc = io.NopCloser(body)
	}

	return &Response{
		Status:     status,
		StatusText: statusText,
		OK:         status >= 200 && status <= 299,
		Type:       TypeDefault,
		URL:        url,
		Header:     header,
		body:       rc,
	}
}

// Body hands over the body stream. The caller must close it.
func (r *Response) Body() (io.ReadCloser, error) {
	if r.used.Swap(true) {
		return nil, ErrBodyUsed
	}

	return r.body, nil
}

// Bytes reads and closes the body.
func (r *Response) Bytes() ([]byte, error) {
	rc, err := r.Body()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return data, nil
}

// Text reads the body as a string.
func (r *Response) Text() (string, error) {
	data, err := r.Bytes()
	return string(data), err
}

// JSON decodes the body into dst.
func (r *Response) JSON(dst any) error {
	data, err := r.Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding json response: %w", err)
	}

	return nil
}

// Close discards an unread body. It is a no-op once the body was used.
func (r *Response) Close() error {
	if r.used.Swap(true) {
		return nil
	}

	return r.body.Close()
}

// statusText strips the numeric code from an [http.Response] status line.
func statusText(code int, status string) string {
	return strings.TrimSpace(strings.TrimPrefix(status, strconv.Itoa(code)))
}

// abortError describes a request ended by ctx or its abort signal.
func abortError(ctx context.Context) error {
	cause := context.Cause(ctx)
	if cause == nil {
		cause = context.Canceled
	}

	return fmt.Errorf("%w: %w", ErrAborted, cause)
}
