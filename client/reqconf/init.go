package reqconf

import (
	"bytes"
	"fmt"
	"io"
)

// Credentials controls whether the caller's cookie jar takes part in a call.
// The zero value leaves the choice to the transport, which sends
// credentials.
type Credentials uint8

const (
	CredentialsUnset Credentials = iota
	CredentialsOmit
	CredentialsSameOrigin
	CredentialsInclude
)

// Redirect controls how a 3xx response is handled. The zero value follows.
type Redirect uint8

const (
	RedirectUnset Redirect = iota
	RedirectFollow
	RedirectManual
	RedirectError
)

// ProgressEvent reports bytes transferred for one direction of a request.
type ProgressEvent struct {
	LengthComputable bool
	Loaded           int64
	Total            int64
}

// ProgressFunc receives progress events. Events for a single request are
// delivered from one goroutine in increasing Loaded order.
type ProgressFunc func(ProgressEvent)

// Body is an encoded request payload. ContentType is the type the encoder
// produced natively, such as a multipart type carrying its boundary, and
// is empty when the caller's headers alone describe the payload.
type Body struct {
	data        []byte
	contentType string
}

// NewBody wraps data as a request payload.
func NewBody(data []byte, contentType string) *Body {
	return &Body{data: data, contentType: contentType}
}

// Len returns the payload size in bytes. A nil Body has length zero.
func (b *Body) Len() int64 {
	if b == nil {
		return 0
	}

	return int64(len(b.data))
}

// Reader returns a fresh reader over the payload.
func (b *Body) Reader() io.Reader {
	return bytes.NewReader(b.Bytes())
}

// Bytes returns the raw payload.
func (b *Body) Bytes() []byte {
	if b == nil {
		return nil
	}

	return b.data
}

// ContentType returns the natively determined content type, if any.
func (b *Body) ContentType() string {
	if b == nil {
		return ""
	}

	return b.contentType
}

// Layer is one level of request configuration: either a concrete [Init]
// or a [Deferred] transform. The set of implementations is closed.
type Layer interface {
	layer()
}

// Init is a concrete request configuration. Zero-valued fields are unset
// and do not override lower layers when merged.
type Init struct {
	Method      string
	Headers     Headers
	Body        *Body
	Credentials Credentials
	Redirect    Redirect

	// Signal aborts the request when it is closed or receives a value.
	Signal <-chan struct{}

	OnUploadProgress   ProgressFunc
	OnDownloadProgress ProgressFunc
}

func (Init) layer() {}

// Deferred transforms the configuration built so far. Its result replaces
// that configuration verbatim, bypassing header union.
type Deferred func(Init) (Init, error)

func (Deferred) layer() {}

// Merge folds overlay onto base. A nil overlay returns base unchanged, a
// Deferred overlay is invoked with base and its result returned as-is, and
// a concrete overlay replaces every non-zero field of base except Headers,
// which are unioned with overlay winning on name collision.
func Merge(base Init, overlay Layer) (Init, error) {
	switch o := overlay.(type) {
	case nil:
		return base, nil
	case Deferred:
		if o == nil {
			return base, nil
		}
		return o(base)
	case Init:
		return mergeInit(base, o), nil
	default:
		return base, fmt.Errorf("unsupported configuration layer %T", overlay)
	}
}

// Apply merges layers in order onto an empty Init, so later layers win.
func Apply(layers ...Layer) (Init, error) {
	var cfg Init
	for _, l := range layers {
		var err error
		if cfg, err = Merge(cfg, l); err != nil {
			return Init{}, err
		}
	}

	return cfg, nil
}

func mergeInit(base, overlay Init) Init {
	out := base
	if overlay.Method != "" {
		out.Method = overlay.Method
	}
	if overlay.Body != nil {
		out.Body = overlay.Body
	}
	if overlay.Credentials != CredentialsUnset {
		out.Credentials = overlay.Credentials
	}
	if overlay.Redirect != RedirectUnset {
		out.Redirect = overlay.Redirect
	}
	if overlay.Signal != nil {
		out.Signal = overlay.Signal
	}
	if overlay.OnUploadProgress != nil {
		out.OnUploadProgress = overlay.OnUploadProgress
	}
	if overlay.OnDownloadProgress != nil {
		out.OnDownloadProgress = overlay.OnDownloadProgress
	}
	out.Headers = base.Headers.Union(overlay.Headers)

	return out
}
