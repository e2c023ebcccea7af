package download

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/adamwoolhether/routefetch/client/reqconf"
)

// progressWriter is an io.Writer that logs progress at most once per second
// when a logger is set, and hands every write to fn when one is set.
type progressWriter struct {
	w           io.Writer
	logger      *slog.Logger
	fn          reqconf.ProgressFunc
	transferred int64
	total       int64
	startTime   time.Time
	lastLog     time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.transferred += int64(n)

	if pw.fn != nil && n > 0 {
		pw.fn(reqconf.ProgressEvent{
			LengthComputable: pw.total >= 0,
			Loaded:           pw.transferred,
			Total:            max(pw.total, 0),
		})
	}

	if pw.logger == nil {
		return n, err
	}

	if time.Since(pw.lastLog) >= time.Second {
		pw.lastLog = time.Now()
		pw.log("downloading")
	}

	if pw.total >= 0 && pw.transferred == pw.total {
		pw.log("download complete")
	}

	return n, err
}

func (pw *progressWriter) log(msg string) {
	elapsed := time.Since(pw.startTime)
	attrs := []any{
		"transferred", pw.transferred,
		"elapsed", elapsed.Round(time.Millisecond),
		"mbps", fmt.Sprintf("%.2f", float64(pw.transferred)/elapsed.Seconds()/(1024*1024)),
	}
	if pw.total > 0 {
		attrs = append(attrs,
			"total", pw.total,
			"progress", fmt.Sprintf("%.1f%%", float64(pw.transferred)/float64(pw.total)*100),
		)
	}
	pw.logger.Info(msg, attrs...)
}
