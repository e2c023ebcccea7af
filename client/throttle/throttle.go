package throttle

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config sets the outbound request rate. RPS is the steady rate in
// requests per second and Burst the number of requests allowed at once.
type Config struct {
	RPS   float64 `yaml:"rps" validate:"gt=0"`
	Burst int     `yaml:"burst" validate:"gt=0"`
}

// Validate reports a non-positive rate or burst.
func (c Config) Validate() error {
	if c.RPS <= 0 || c.Burst <= 0 {
		return fmt.Errorf("rps[%g] and burst[%d] %w", c.RPS, c.Burst, ErrMustNotBeZero)
	}

	return nil
}

// throttle is an http.RoundTripper that holds each outbound request until
// the token bucket admits it.
type throttle struct {
	limiter *rate.Limiter
	cfg     Config
	next    http.RoundTripper
	logFn   func() *slog.Logger
}

// NewRoundTripper wraps next with a token bucket limiter. logFn resolves the
// logger at request time, so it may be wired before the logger is known. A
// nil result from logFn disables wait logging. A nil next uses
// [http.DefaultTransport].
func NewRoundTripper(cfg Config, logFn func() *slog.Logger, next http.RoundTripper) (http.RoundTripper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if next == nil {
		next = http.DefaultTransport
	}
	if logFn == nil {
		logFn = func() *slog.Logger { return nil }
	}

	t := throttle{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		cfg:     cfg,
		next:    next,
		logFn:   logFn,
	}

	return &t, nil
}

func (t *throttle) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	if logger := t.logFn(); logger != nil {
		if t.limiter.Allow() {
			return t.forward(r)
		}

		start := time.Now()
		logger.Info("throttle tokens exhausted", "method", r.Method, "host", r.URL.Host, "path", r.URL.Path, "rps", t.cfg.RPS, "burst", t.cfg.Burst)
		defer func() {
			logger.Info("throttle wait complete", "method", r.Method, "path", r.URL.Path, "waited", time.Since(start).String())
		}()
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	return t.forward(r)
}

func (t *throttle) forward(r *http.Request) (*http.Response, error) {
	if err := r.Context().Err(); err != nil {
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return t.next.RoundTrip(r)
}
