package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/adamwoolhether/routefetch/client/reqconf"
	"github.com/adamwoolhether/routefetch/client/throttle"
	"go.opentelemetry.io/otel/trace"
)

// DefaultRequestIDHeader is the header [WithRequestID] uses when given an
// empty name.
const DefaultRequestIDHeader = "X-Request-ID"

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	client            *http.Client
	rt                http.RoundTripper
	timeout           *time.Duration
	userAgent         string
	throttle          *throttle.Config
	noFollowRedirects bool
	logger            *slog.Logger

	basePath        string
	defaults        reqconf.Layer
	reject          func(error) error
	tracer          trace.Tracer
	metrics         *Metrics
	requestIDHeader string
}

// WithClient replaces the default [http.Client] used by the [Client]. The
// client is copied, so later options never modify it.
func WithClient(hc *http.Client) Option {
	return func(c *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		c.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.rt = rt
		return nil
	}
}

// WithTimeout sets the overall request timeout on the underlying [http.Client].
func WithTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = &d
		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(header string) Option {
	return func(c *options) error {
		c.userAgent = header
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting with the given requests
// per second and burst capacity.
func WithThrottle(rps float64, burst int) Option {
	return func(c *options) error {
		cfg := throttle.Config{RPS: rps, Burst: burst}
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.throttle = &cfg
		return nil
	}
}

// WithNoFollowRedirects returns 3xx responses as-is instead of following
// them, unless a request's [reqconf.Redirect] mode says otherwise.
func WithNoFollowRedirects() Option {
	return func(c *options) error {
		c.noFollowRedirects = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *options) error {
		c.logger = logger
		return nil
	}
}

// WithBasePath sets the absolute URL that route paths resolve against when
// a [Route] has no BasePath of its own.
func WithBasePath(basePath string) Option {
	return func(c *options) error {
		u, err := url.Parse(basePath)
		if err != nil {
			return fmt.Errorf("parsing base path: %w", err)
		}
		if !u.IsAbs() {
			return fmt.Errorf("base path %q must be an absolute url", basePath)
		}
		c.basePath = basePath
		return nil
	}
}

// WithDefaults sets the lowest-precedence configuration layer, applied
// beneath every route's own layer and every per-call override.
func WithDefaults(layer reqconf.Layer) Option {
	return func(c *options) error {
		c.defaults = layer
		return nil
	}
}

// WithRejectHook lets fn observe or replace every error returned by a
// [Func]. A nil result from fn keeps the original error.
func WithRejectHook(fn func(error) error) Option {
	return func(c *options) error {
		c.reject = fn
		return nil
	}
}

// WithTracer records a client span around every executed route and
// propagates its context in the request headers.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *options) error {
		c.tracer = tracer
		return nil
	}
}

// WithMetrics records request counts, durations and in-flight gauges on m.
func WithMetrics(m *Metrics) Option {
	return func(c *options) error {
		if m == nil {
			return errors.New("metrics must not be nil")
		}
		c.metrics = m
		return nil
	}
}

// WithRequestID stamps each request with a random UUID in header, keeping
// any value a configuration layer already set. An empty header uses
// [DefaultRequestIDHeader].
func WithRequestID(header string) Option {
	return func(c *options) error {
		if header == "" {
			header = DefaultRequestIDHeader
		}
		c.requestIDHeader = header
		return nil
	}
}

// userAgent is an http.RoundTripper, enabling the persistent User-Agent header.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}
