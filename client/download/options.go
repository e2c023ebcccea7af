package download

import (
	"errors"
	"hash"

	"github.com/adamwoolhether/routefetch/client/reqconf"
)

// Option defines optional settings for downloading files.
type Option func(*options) error

type options struct {
	checksum     *digest
	progress     bool
	progressFn   reqconf.ProgressFunc
	skipExisting bool
}

// WithChecksum enables checksum validation of the downloaded file.
// h is a hash.Hash instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string.
func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}

		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}

		opts.checksum = newDigest(h, expected)
		return nil
	}
}

// WithProgress enables periodic download progress logging via the
// logger supplied to Handle.
func WithProgress() Option {
	return func(opts *options) error {
		opts.progress = true
		return nil
	}
}

// WithProgressFunc reports every write to fn, the same way a transport
// reports download progress.
func WithProgressFunc(fn reqconf.ProgressFunc) Option {
	return func(opts *options) error {
		if fn == nil {
			return errors.New("progress func must not be nil")
		}
		opts.progressFn = fn
		return nil
	}
}

// WithSkipExisting causes Handle to return nil immediately when
// the destination file already exists, avoiding a redundant download.
func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true
		return nil
	}
}
