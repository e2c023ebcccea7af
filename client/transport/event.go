package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/adamwoolhether/routefetch/client/body"
	"github.com/adamwoolhether/routefetch/client/reqconf"
)

// Event performs requests through an event-driven request object. Unlike
// [Stream] it reports upload progress, and it always buffers the response
// before settling.
type Event struct {
	client *http.Client
	logger *slog.Logger
}

// NewEvent returns an Event over client. A nil client uses
// [http.DefaultClient] and a nil logger uses [slog.Default].
func NewEvent(client *http.Client, logger *slog.Logger) *Event {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Event{client: client, logger: logger}
}

type settled struct {
	resp *Response
	err  error
}

func (e *Event) Execute(ctx context.Context, url string, init reqconf.Init) (*Response, error) {
	x := newEventRequest(e.client, e.logger)
	x.open(init.Method, url)
	x.withCredentials = init.Credentials != reqconf.CredentialsOmit
	x.redirect = init.Redirect

	for _, h := range init.Headers.Entries() {
		if strings.EqualFold(h.Name, "Content-Type") && body.IsMultipart(h.Value) {
			continue
		}
		x.setRequestHeader(h.Name, h.Value)
	}

	done := make(chan settled, 1)
	var once sync.Once
	settle := func(resp *Response, err error) {
		once.Do(func() { done <- settled{resp: resp, err: err} })
	}

	x.addEventListener(eventLoad, func(reqconf.ProgressEvent) {
		settle(x.response(), nil)
	})
	x.addEventListener(eventError, func(reqconf.ProgressEvent) {
		settle(nil, &NetworkError{Method: init.Method, URL: url, Err: x.err})
	})
	x.addEventListener(eventAbort, func(reqconf.ProgressEvent) {
		settle(nil, abortError(x.ctx))
	})
	if init.OnUploadProgress != nil {
		x.upload.addEventListener(eventProgress, init.OnUploadProgress)
	}
	if init.OnDownloadProgress != nil {
		x.addEventListener(eventProgress, init.OnDownloadProgress)
	}

	stopCtx := context.AfterFunc(ctx, func() { x.abortWith(context.Cause(ctx)) })
	defer stopCtx()
	stopSignal := bindSignal(init.Signal, x.abort)
	defer stopSignal()

	x.send(init.Body)

	r := <-done
	return r.resp, r.err
}

// =============================================================================

const (
	eventProgress = "progress"
	eventLoad     = "load"
	eventError    = "error"
	eventAbort    = "abort"
	eventLoadEnd  = "loadend"
)

// eventTarget holds listeners by event name. Listeners are registered
// before send and only read afterwards.
type eventTarget struct {
	listeners map[string][]reqconf.ProgressFunc
}

func (t *eventTarget) addEventListener(name string, fn reqconf.ProgressFunc) {
	if t.listeners == nil {
		t.listeners = make(map[string][]reqconf.ProgressFunc)
	}
	t.listeners[name] = append(t.listeners[name], fn)
}

func (t *eventTarget) dispatch(name string, ev reqconf.ProgressEvent) {
	for _, fn := range t.listeners[name] {
		fn(ev)
	}
}

// eventRequest models a single request whose lifecycle is observed
// through events: progress on the upload target while the body is sent,
// progress while the response downloads, then exactly one of load, error
// or abort, followed by loadend.
type eventRequest struct {
	eventTarget
	upload eventTarget

	client *http.Client
	logger *slog.Logger

	method          string
	url             string
	header          http.Header
	withCredentials bool
	redirect        reqconf.Redirect

	ctx    context.Context
	cancel context.CancelCauseFunc

	status       int
	statusText   string
	responseURL  string
	redirected   bool
	responseText string
	rawHeaders   string
	err          error
}

func newEventRequest(client *http.Client, logger *slog.Logger) *eventRequest {
	ctx, cancel := context.WithCancelCause(context.Background())

	return &eventRequest{
		client: client,
		logger: logger,
		header: make(http.Header),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (x *eventRequest) open(method, url string) {
	x.method = method
	x.url = url
}

func (x *eventRequest) setRequestHeader(name, value string) {
	x.header.Add(name, value)
}

func (x *eventRequest) abort() {
	x.abortWith(context.Canceled)
}

func (x *eventRequest) abortWith(cause error) {
	if cause == nil {
		cause = context.Canceled
	}
	x.cancel(cause)
}

func (x *eventRequest) getAllResponseHeaders() string {
	return x.rawHeaders
}

// send starts the request in the background.
func (x *eventRequest) send(payload *reqconf.Body) {
	go func() {
		defer x.cancel(nil)

		x.err = x.do(payload)

		switch {
		case x.ctx.Err() != nil:
			x.dispatch(eventAbort, reqconf.ProgressEvent{})
		case x.err != nil:
			x.dispatch(eventError, reqconf.ProgressEvent{})
		default:
			x.dispatch(eventLoad, reqconf.ProgressEvent{})
		}
		x.dispatch(eventLoadEnd, reqconf.ProgressEvent{})
	}()
}

func (x *eventRequest) do(payload *reqconf.Body) error {
	var r io.Reader
	if payload.Len() == 0 {
		payload = nil
	}
	if payload != nil {
		r = payload.Reader()
		if len(x.upload.listeners[eventProgress]) > 0 {
			r = newProgressReader(r, payload.Len(), func(ev reqconf.ProgressEvent) {
				x.upload.dispatch(eventProgress, ev)
			})
		}
	}

	req, err := http.NewRequestWithContext(x.ctx, x.method, x.url, r)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.ContentLength = payload.Len()
		req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(payload.Reader()), nil }
	}
	req.Header = x.header.Clone()
	if ct := payload.ContentType(); ct != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", ct)
	}

	init := reqconf.Init{Redirect: x.redirect, Credentials: reqconf.CredentialsInclude}
	if !x.withCredentials {
		init.Credentials = reqconf.CredentialsOmit
	}

	resp, err := clientFor(x.client, init, &x.redirected).Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			x.logger.Error("closing response body", "error", err)
		}
	}()

	x.status = resp.StatusCode
	x.statusText = statusText(resp.StatusCode, resp.Status)
	x.responseURL = resp.Request.URL.String()
	x.rawHeaders = reqconf.FormatRawHeaders(resp.Header)

	var src io.Reader = resp.Body
	if len(x.listeners[eventProgress]) > 0 {
		src = newProgressReader(resp.Body, resp.ContentLength, func(ev reqconf.ProgressEvent) {
			x.dispatch(eventProgress, ev)
		})
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, src); err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	x.responseText = sb.String()

	return nil
}

func (x *eventRequest) response() *Response {
	resp := NewResponse(x.status, x.statusText, x.responseURL, reqconf.ParseRawHeaders(x.getAllResponseHeaders()), strings.NewReader(x.responseText))
	resp.Redirected = x.redirected
	if x.redirect == reqconf.RedirectManual && x.status >= 300 && x.status <= 399 {
		resp.Type = TypeOpaqueRedirect
	}

	return resp
}
