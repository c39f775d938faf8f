package allocine

import (
	"errors"
	"io"
)

// ErrReadBeyondLimit is returned when a response body is larger than allowed.
var ErrReadBeyondLimit = errors.New("read beyond limit")

// limitedReader reads from r but fails with ErrReadBeyondLimit once more than n bytes are available.
// A body of exactly n bytes is read without error.
type limitedReader struct {
	r io.Reader
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n <= 0 {
		var probe [1]byte
		n, err := l.r.Read(probe[:])
		if n > 0 {
			return 0, ErrReadBeyondLimit
		}
		if err == nil {
			// zero-length read without EOF; let the caller retry
			return 0, nil
		}
		return 0, err
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	return n, err
}

func readAllLimited(r io.Reader, n int64) ([]byte, error) {
	return io.ReadAll(&limitedReader{r: r, n: n})
}
