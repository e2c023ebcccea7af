package transport

import (
	"io"

	"github.com/adamwoolhether/routefetch/client/reqconf"
)

// progressReader is an io.Reader, reporting every non-empty read to fn.
// A negative total marks the length as unknown.
type progressReader struct {
	r      io.Reader
	fn     reqconf.ProgressFunc
	loaded int64
	total  int64
}

func newProgressReader(r io.Reader, total int64, fn reqconf.ProgressFunc) *progressReader {
	return &progressReader{r: r, fn: fn, total: total}
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.loaded += int64(n)
		pr.report()
	}

	return n, err
}

func (pr *progressReader) report() {
	ev := reqconf.ProgressEvent{Loaded: pr.loaded}
	if pr.total >= 0 {
		ev.LengthComputable = true
		ev.Total = pr.total
	}
	pr.fn(ev)
}
