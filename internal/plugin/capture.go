package plugin

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// Stream caps. Neither depends on the timeout.
const (
	MaxStdoutBytes = 16 << 20
	MaxStderrBytes = 4 << 20
	readChunk      = 64 << 10
)

// cappedBuffer keeps the first limit bytes written to it and drops the
// rest while still reporting success, so the writer is never blocked.
type cappedBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room := c.limit - c.buf.Len()
	if len(p) > room {
		c.overflow = true
		if room > 0 {
			c.buf.Write(p[:room])
		}
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

// Snapshot returns a copy of the captured bytes and whether anything was
// dropped.
func (c *cappedBuffer) Snapshot() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.buf.Bytes()), c.overflow
}

type readResult struct {
	data     []byte
	n        int
	tooLarge bool
	err      error
}

// readCapped drains r until EOF. It stops as soon as more than limit bytes
// have arrived; a stream of exactly limit bytes is complete.
func readCapped(r io.Reader, limit int) readResult {
	var buf bytes.Buffer
	chunk := make([]byte, readChunk)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if buf.Len()+n > limit {
				return readResult{n: buf.Len() + n, tooLarge: true}
			}
			buf.Write(chunk[:n])
		}
		if errors.Is(err, io.EOF) {
			return readResult{data: buf.Bytes(), n: buf.Len()}
		}
		if err != nil {
			return readResult{n: buf.Len(), err: err}
		}
	}
}
