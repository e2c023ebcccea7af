package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const tempPattern = ".routefetch-dl-*"

// Handle streams body to a temp file in the directory of destPath and
// renames it to destPath on success. On any error the temp file is removed.
// A negative contentLength skips the length check.
func Handle(ctx context.Context, body io.Reader, contentLength int64, destPath string, logger *slog.Logger, optFns ...Option) error {
	if logger == nil {
		logger = slog.Default()
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return fmt.Errorf("applying option: %w", err)
		}
	}

	if opts.skipExisting {
		if _, err := os.Stat(destPath); err == nil {
			logger.Info("destination exists, not downloading", "path", destPath)
			return nil
		}
	}

	s, err := openSink(destPath, logger)
	if err != nil {
		return err
	}
	defer s.discard()

	n, err := io.Copy(opts.writer(s.f, contentLength, logger), &contextReader{ctx: ctx, r: body})
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrDownloadCancelled, err)
	case err != nil:
		return fmt.Errorf("streaming body: %w", err)
	}

	if contentLength >= 0 && n != contentLength {
		return &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("want %d bytes, got %d", contentLength, n),
		}
	}

	if err := opts.checksum.Verify(); err != nil {
		return err
	}

	return s.commit(destPath)
}

// writer layers the checksum and progress observers over dst.
func (o *options) writer(dst io.Writer, total int64, logger *slog.Logger) io.Writer {
	w := dst
	if o.checksum != nil {
		w = io.MultiWriter(w, o.checksum)
	}

	if !o.progress && o.progressFn == nil {
		return w
	}

	pw := &progressWriter{w: w, fn: o.progressFn, total: total, startTime: time.Now()}
	if o.progress {
		pw.logger = logger
	}

	return pw
}

// =============================================================================

// sink is a temp file that either becomes the destination or is removed.
type sink struct {
	f         *os.File
	logger    *slog.Logger
	committed bool
}

func openSink(destPath string, logger *slog.Logger) (*sink, error) {
	f, err := os.CreateTemp(filepath.Dir(destPath), tempPattern)
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}

	return &sink{f: f, logger: logger}, nil
}

func (s *sink) commit(destPath string) error {
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(s.f.Name(), destPath); err != nil {
		return fmt.Errorf("moving download into place: %w", err)
	}

	s.committed = true
	return nil
}

// discard is a no-op after a successful commit.
func (s *sink) discard() {
	if s.committed {
		return
	}

	if err := s.f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		s.logger.Error("closing temp file", "path", s.f.Name(), "error", err)
	}
	if err := os.Remove(s.f.Name()); err != nil {
		s.logger.Error("removing temp file", "path", s.f.Name(), "error", err)
	}
}
