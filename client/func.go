package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"reflect"
	"strconv"

	"github.com/adamwoolhether/routefetch/client/download"
	"github.com/adamwoolhether/routefetch/client/reqconf"
	"github.com/adamwoolhether/routefetch/client/transport"
)

// Interpreter turns a successful response into a typed result. It owns the
// response body.
type Interpreter[T any] func(ctx context.Context, resp *transport.Response) (T, error)

// Func is an [Endpoint] paired with the interpretation of its response.
type Func[T any] struct {
	ep        *Endpoint
	interpret Interpreter[T]
}

// NewFunc pairs ep with interpret.
func NewFunc[T any](ep *Endpoint, interpret Interpreter[T]) *Func[T] {
	return &Func[T]{ep: ep, interpret: interpret}
}

// JSON decodes the response body into a T.
func JSON[T any](ep *Endpoint) *Func[T] {
	return NewFunc(ep, func(_ context.Context, resp *transport.Response) (T, error) {
		var v T
		if err := resp.JSON(&v); err != nil {
			return v, err
		}
		return v, nil
	})
}

// Text returns the response body as a string.
func Text(ep *Endpoint) *Func[string] {
	return NewFunc(ep, func(_ context.Context, resp *transport.Response) (string, error) {
		return resp.Text()
	})
}

// Void discards the response body.
func Void(ep *Endpoint) *Func[struct{}] {
	return NewFunc(ep, func(_ context.Context, resp *transport.Response) (struct{}, error) {
		if err := drain(resp, ep.client.logger); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
}

// File streams the response body to destPath and returns destPath. Data is
// written to a temp file in the same directory and renamed on success.
func File(ep *Endpoint, destPath string, opts ...download.Option) *Func[string] {
	return NewFunc(ep, func(ctx context.Context, resp *transport.Response) (string, error) {
		if destPath == "" {
			_ = resp.Close()
			return "", errors.New("destPath must not be empty")
		}

		rc, err := resp.Body()
		if err != nil {
			return "", err
		}
		defer func() {
			if err := rc.Close(); err != nil {
				ep.client.logger.Error("failed to close response body", "error", err)
			}
		}()

		if err := download.Handle(ctx, rc, contentLength(resp), destPath, ep.client.logger, opts...); err != nil {
			return "", fmt.Errorf("download: %w", err)
		}

		return destPath, nil
	})
}

// Get binds a GET route decoding a JSON response.
func Get[T any](c *Client, path string, layer reqconf.Layer) (*Func[T], error) {
	return bindJSON[T](c, MethodGet, path, layer)
}

// Post binds a POST route decoding a JSON response.
func Post[T any](c *Client, path string, layer reqconf.Layer) (*Func[T], error) {
	return bindJSON[T](c, MethodPost, path, layer)
}

// Put binds a PUT route decoding a JSON response.
func Put[T any](c *Client, path string, layer reqconf.Layer) (*Func[T], error) {
	return bindJSON[T](c, MethodPut, path, layer)
}

// Patch binds a PATCH route decoding a JSON response.
func Patch[T any](c *Client, path string, layer reqconf.Layer) (*Func[T], error) {
	return bindJSON[T](c, MethodPatch, path, layer)
}

// Delete binds a DELETE route decoding a JSON response.
func Delete[T any](c *Client, path string, layer reqconf.Layer) (*Func[T], error) {
	return bindJSON[T](c, MethodDelete, path, layer)
}

func bindJSON[T any](c *Client, method Method, path string, layer reqconf.Layer) (*Func[T], error) {
	ep, err := c.Bind(Route{Method: method, Path: path}, layer)
	if err != nil {
		return nil, err
	}

	return JSON[T](ep), nil
}

// Endpoint returns the bound endpoint behind f.
func (f *Func[T]) Endpoint() *Endpoint {
	return f.ep
}

// Call executes the endpoint and interprets the response. Every error,
// from the request or the interpretation, passes through the client's
// reject hook.
func (f *Func[T]) Call(ctx context.Context, data any, layer reqconf.Layer) (T, error) {
	resp, err := f.ep.Execute(ctx, data, layer)
	if err != nil {
		var zero T
		return zero, f.rejected(err)
	}

	v, err := f.interpret(ctx, resp)
	if err != nil {
		_ = resp.Close()
		var zero T
		return zero, f.rejected(err)
	}

	return v, nil
}

// Key identifies the route independent of its arguments, as
// "<METHOD>:<path template>".
func (f *Func[T]) Key() string {
	r := f.ep.Route()
	return r.Method.String() + ":" + r.Path
}

// KeyWith is the cache key for one call: the route key followed by data,
// or nil when data is absent. Nil maps, slices and pointers count as
// absent, as do false, zero numbers and the empty string.
func (f *Func[T]) KeyWith(data any) []any {
	if absent(data) {
		data = nil
	}

	return []any{f.Key(), data}
}

func (f *Func[T]) rejected(err error) error {
	hook := f.ep.client.reject
	if hook == nil {
		return err
	}
	if replaced := hook(err); replaced != nil {
		return replaced
	}

	return err
}

// =============================================================================

func drain(resp *transport.Response, logger *slog.Logger) error {
	rc, err := resp.Body()
	if err != nil {
		return err
	}
	defer func() {
		if err := rc.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		logger.Error("failed to discard unused body", "error", err)
	}

	return nil
}

// contentLength reads the declared body size, or -1 when unknown.
func contentLength(resp *transport.Response) int64 {
	n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil || n < 0 {
		return -1
	}

	return n
}

func absent(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f == 0 || math.IsNaN(f)
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.IsZero()
	}

	return false
}
