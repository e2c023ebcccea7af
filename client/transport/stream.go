package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/adamwoolhether/routefetch/client/reqconf"
)

// Stream performs requests with an [http.Client]. When a download progress
// callback is set and the response length is known, the body is read in
// chunks, each chunk is reported, and the response is rebuilt over the
// collected bytes. Otherwise the body streams through unbuffered.
type Stream struct {
	client *http.Client
	logger *slog.Logger
}

// NewStream returns a Stream over client. A nil client uses
// [http.DefaultClient] and a nil logger uses [slog.Default].
func NewStream(client *http.Client, logger *slog.Logger) *Stream {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Stream{client: client, logger: logger}
}

func (s *Stream) Execute(ctx context.Context, url string, init reqconf.Init) (*Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	stop := bindSignal(init.Signal, cancel)

	release := func() {
		stop()
		cancel()
	}

	var body io.Reader
	if init.Body != nil {
		body = init.Body.Reader()
	}

	req, err := http.NewRequestWithContext(ctx, init.Method, url, body)
	if err != nil {
		release()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = requestHeader(init)

	var redirected bool
	resp, err := clientFor(s.client, init, &redirected).Do(req)
	if err != nil {
		defer release()
		switch {
		case ctx.Err() != nil:
			return nil, abortError(ctx)
		case errors.Is(err, ErrRedirect):
			return nil, &NetworkError{Method: init.Method, URL: url, Err: ErrRedirect}
		}
		return nil, &NetworkError{Method: init.Method, URL: url, Err: err}
	}

	out := &Response{
		Status:     resp.StatusCode,
		StatusText: statusText(resp.StatusCode, resp.Status),
		OK:         resp.StatusCode >= 200 && resp.StatusCode <= 299,
		Redirected: redirected,
		Type:       TypeBasic,
		URL:        resp.Request.URL.String(),
		Header:     reqconf.HeadersFromHTTP(resp.Header),
	}
	if init.Redirect == reqconf.RedirectManual && resp.StatusCode >= 300 && resp.StatusCode <= 399 {
		out.Type = TypeOpaqueRedirect
	}

	if init.OnDownloadProgress == nil || resp.ContentLength < 0 {
		out.body = &releaseOnClose{ReadCloser: resp.Body, ctx: ctx, release: release}
		return out, nil
	}

	defer release()
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Error("closing response body", "error", err)
		}
	}()

	// The declared length is only a hint; cap the up-front allocation.
	var buf bytes.Buffer
	buf.Grow(int(min(resp.ContentLength, maxPrealloc)))

	pr := newProgressReader(resp.Body, resp.ContentLength, init.OnDownloadProgress)
	if _, err := buf.ReadFrom(pr); err != nil {
		if ctx.Err() != nil {
			return nil, abortError(ctx)
		}
		return nil, &NetworkError{Method: init.Method, URL: url, Err: err}
	}

	out.body = io.NopCloser(bytes.NewReader(buf.Bytes()))

	return out, nil
}

const maxPrealloc = 1 << 20

// releaseOnClose keeps the request context alive until the streamed body
// is closed. Reads cut short by an abort report ErrAborted.
type releaseOnClose struct {
	io.ReadCloser
	ctx     context.Context
	release func()
}

func (r *releaseOnClose) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && r.ctx.Err() != nil {
		return n, abortError(r.ctx)
	}

	return n, err
}

func (r *releaseOnClose) Close() error {
	defer r.release()
	return r.ReadCloser.Close()
}
