// Package progress tracks long-running source downloads so multi-gigabyte
// uploads do not look stuck in the logs.
package progress

import (
	"io"
	"sync/atomic"
)

// ReadCounter counts bytes flowing through a reader. Safe for concurrent
// Count calls while another goroutine reads.
type ReadCounter struct {
	r     io.Reader
	count uint64
}

func NewReadCounter(r io.Reader) *ReadCounter {
	return &ReadCounter{r: r}
}

func (h *ReadCounter) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	if n > 0 {
		atomic.AddUint64(&h.count, uint64(n))
	}
	return n, err
}

func (h *ReadCounter) Count() uint64 {
	return atomic.LoadUint64(&h.count)
}
