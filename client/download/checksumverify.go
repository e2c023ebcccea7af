package download

import (
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// digest hashes bytes as they stream to disk and compares the result to a
// caller-supplied hex sum once the body is exhausted.
type digest struct {
	h       hash.Hash
	want    string
	written int64
}

func newDigest(h hash.Hash, want string) *digest {
	return &digest{h: h, want: strings.ToLower(strings.TrimSpace(want))}
}

func (d *digest) Write(p []byte) (int, error) {
	n, err := d.h.Write(p)
	d.written += int64(n)
	return n, err
}

// Verify is safe to call on a nil digest.
func (d *digest) Verify() error {
	if d == nil {
		return nil
	}

	got := hex.EncodeToString(d.h.Sum(nil))
	if got != d.want {
		return &Error{
			Err:    ErrChecksumMismatch,
			Detail: fmt.Sprintf("want %s, got %s over %d bytes", d.want, got, d.written),
		}
	}

	return nil
}
