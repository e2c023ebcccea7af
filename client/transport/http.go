package transport

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/adamwoolhether/routefetch/client/body"
	"github.com/adamwoolhether/routefetch/client/reqconf"
)

// clientFor derives a per-request client from base, applying the
// credentials and redirect modes of init. base itself is never modified.
func clientFor(base *http.Client, init reqconf.Init, redirected *bool) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	c := *base

	if init.Credentials == reqconf.CredentialsOmit {
		c.Jar = nil
	}

	next := base.CheckRedirect
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		switch init.Redirect {
		case reqconf.RedirectManual:
			return http.ErrUseLastResponse
		case reqconf.RedirectError:
			return fmt.Errorf("%w: %s", ErrRedirect, req.URL.Redacted())
		}

		if next != nil {
			if err := next(req, via); err != nil {
				return err
			}
		} else if len(via) >= 10 {
			return fmt.Errorf("stopped after %d redirects", len(via))
		}
		*redirected = true

		return nil
	}

	return &c
}

// requestHeader returns the headers to send for init. A payload that
// determined its own content type, such as a multipart body with its
// boundary, supplies it when none was set or a multipart one was, whatever
// its parameters.
func requestHeader(init reqconf.Init) http.Header {
	h := init.Headers.HTTP()

	if ct := init.Body.ContentType(); ct != "" {
		if cur := h.Get("Content-Type"); cur == "" || body.IsMultipart(cur) {
			h.Set("Content-Type", ct)
		}
	}

	return h
}

// bindSignal calls abort once signal fires. The returned stop releases the
// watcher; it is safe to call more than once.
func bindSignal(signal <-chan struct{}, abort func()) (stop func()) {
	if signal == nil {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-signal:
			abort()
		case <-done:
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
