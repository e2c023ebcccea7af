// Package throttle rate-limits outbound requests with a token bucket from
// [golang.org/x/time/rate].
//
// Wrap the transport of the client that executes routes:
//
//	rt, err := throttle.NewRoundTripper(
//		throttle.Config{RPS: 10, Burst: 5},
//		func() *slog.Logger { return slog.Default() },
//		http.DefaultTransport,
//	)
//	httpClient := &http.Client{Transport: rt}
//
// A request over the limit blocks until a token is free or its context
// ends, in which case the error wraps [ErrWaitingFailed].
package throttle
