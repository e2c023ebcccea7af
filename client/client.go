package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/adamwoolhether/routefetch/client/body"
	"github.com/adamwoolhether/routefetch/client/reqconf"
	"github.com/adamwoolhether/routefetch/client/throttle"
	"github.com/adamwoolhether/routefetch/client/transport"
	"github.com/adamwoolhether/routefetch/internal/coerce"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Client binds routes to a shared HTTP stack. It sets a default
// *http.Client and *http.Transport, which can be customized via optional
// funcs, and is safe for concurrent use once built.
type Client struct {
	c      *http.Client
	logger *slog.Logger

	basePath        string
	defaults        reqconf.Layer
	reject          func(error) error
	tracer          trace.Tracer
	metrics         *Metrics
	requestIDHeader string

	stream transport.Transport
	event  transport.Transport
}

func Build(optFns ...Option) (*Client, error) {
	client := &Client{
		c:      &http.Client{},
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer(""),
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if opts.client != nil {
		cpy := *opts.client
		client.c = &cpy
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var rt http.RoundTripper
	switch {
	case opts.rt != nil:
		rt = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		rt = opts.client.Transport
	default:
		rt = http.DefaultTransport
	}
	if opts.userAgent != "" {
		rt = userAgent{value: opts.userAgent, base: rt}
	}
	if opts.throttle != nil {
		throttled, err := throttle.NewRoundTripper(*opts.throttle, func() *slog.Logger { return client.logger }, rt)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		rt = throttled
	}
	client.c.Transport = rt

	client.basePath = opts.basePath
	client.defaults = opts.defaults
	client.reject = opts.reject
	client.metrics = opts.metrics
	client.requestIDHeader = opts.requestIDHeader
	if opts.tracer != nil {
		client.tracer = opts.tracer
	}

	client.stream = transport.NewStream(client.c, client.logger)
	client.event = transport.NewEvent(client.c, client.logger)

	return client, nil
}

// Bind validates route and prepares it for execution. layer, which may be
// nil, is the route's default configuration: it sits above the client's
// defaults and below every per-call override.
func (c *Client) Bind(route Route, layer reqconf.Layer) (*Endpoint, error) {
	cr, err := compileRoute(route, c.basePath)
	if err != nil {
		return nil, err
	}

	return &Endpoint{client: c, cr: cr, layer: layer}, nil
}

// MustBind is like Bind but panics on error. It suits package-level route
// tables.
func (c *Client) MustBind(route Route, layer reqconf.Layer) *Endpoint {
	ep, err := c.Bind(route, layer)
	if err != nil {
		panic(err)
	}

	return ep
}

// =============================================================================

// Endpoint is a route bound to a [Client]. Its parsed path template is
// shared read-only by every call, so an Endpoint is safe for concurrent use.
type Endpoint struct {
	client *Client
	cr     compiledRoute
	layer  reqconf.Layer
}

// Route returns the route the endpoint was bound from.
func (e *Endpoint) Route() Route {
	return e.cr.route
}

// Execute performs one call. data supplies path parameters, and whatever
// the path does not consume becomes the JSON body for POST, PUT and PATCH
// or the query string otherwise; a multipart Content-Type turns it into
// form fields instead. data may be a map or any value that encodes to a
// JSON object, such as a tagged struct. override is applied last.
//
// A response outside the 2xx range is returned as a *[ResponseError]. Any
// other response is returned with its body unread; the caller must consume
// or Close it.
func (e *Endpoint) Execute(ctx context.Context, data any, override reqconf.Layer) (*transport.Response, error) {
	c := e.client
	route := e.cr.route
	method := route.Method.String()

	ctx, span := c.tracer.Start(ctx, "routefetch.execute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.template", route.Path),
		),
	)
	defer span.End()

	resp, err := e.execute(ctx, span, data, override)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return resp, nil
}

func (e *Endpoint) execute(ctx context.Context, span trace.Span, data any, override reqconf.Layer) (*transport.Response, error) {
	c := e.client
	route := e.cr.route

	cfg, err := reqconf.Apply(c.defaults, e.layer, override)
	if err != nil {
		return nil, fmt.Errorf("merging request config: %w", err)
	}
	cfg.Method = route.Method.String()

	obj, err := coerce.Object(data)
	if err != nil {
		return nil, err
	}

	path, err := e.cr.tmpl.Compile(obj)
	if err != nil {
		return nil, fmt.Errorf("compiling path: %w", err)
	}

	enc, headers, err := body.Encode(route.Method, cfg.Headers, e.cr.tmpl.Residual(obj))
	if err != nil {
		return nil, fmt.Errorf("encoding request data: %w", err)
	}
	cfg.Headers = headers
	if enc.Body != nil {
		cfg.Body = enc.Body
	}

	u, err := e.cr.resolve(path, enc.Query)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("url.full", u.Redacted()))

	h := cfg.Headers.HTTP()
	var requestID string
	if c.requestIDHeader != "" {
		if requestID = h.Get(c.requestIDHeader); requestID == "" {
			requestID = uuid.NewString()
			h.Set(c.requestIDHeader, requestID)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
	cfg.Headers = reqconf.HeadersFromHTTP(h)

	record := c.metrics.begin(cfg.Method, route.Path)
	start := time.Now()

	resp, err := c.transportFor(cfg).Execute(ctx, u.String(), cfg)
	record(resp, err)
	if err != nil {
		c.logger.Debug("route failed", "method", cfg.Method, "url", u.Redacted(), "duration", time.Since(start), "request_id", requestID, "error", err)
		return nil, err
	}

	c.logger.Debug("route executed", "method", cfg.Method, "url", u.Redacted(), "status", resp.Status, "duration", time.Since(start), "request_id", requestID)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.Status))

	if !resp.OK {
		return nil, newResponseError(resp)
	}

	return resp, nil
}

// transportFor picks the event transport when upload progress is wanted,
// since only it can observe the request body being sent.
func (c *Client) transportFor(cfg reqconf.Init) transport.Transport {
	if cfg.OnUploadProgress != nil {
		return c.event
	}

	return c.stream
}
