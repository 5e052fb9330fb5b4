package executor

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	// progressBuffer is how many finished lines may wait for a slow progress
	// writer before new lines are skipped.
	progressBuffer = 1024
	// drainTimeout bounds how long Flush waits for the progress writer to
	// take the queued lines.
	drainTimeout = 2 * time.Second
)

// Capture collects combined process output. It keeps the first MaxCapture
// bytes and queues every complete line for an optional progress writer.
//
// The progress writer runs on its own goroutine. Write only queues, so a
// stalled writer cannot block the process output copier; lines that do not
// fit in the queue are counted and skipped.
//
// Capture is safe for concurrent writers; exec may copy stdout and stderr
// from separate goroutines.
type Capture struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
	pending   []byte
	skipped   int

	lines   chan []byte
	drained chan struct{}
	closed  bool
}

// NewCapture returns a Capture that keeps up to limit bytes. progress may be nil.
func NewCapture(limit int, progress io.Writer) *Capture {
	if limit <= 0 {
		limit = MaxCapture
	}
	c := &Capture{limit: limit}
	if progress != nil {
		c.lines = make(chan []byte, progressBuffer)
		c.drained = make(chan struct{})
		go c.forward(progress)
	}
	return c
}

func (c *Capture) forward(w io.Writer) {
	defer close(c.drained)
	for line := range c.lines {
		_, _ = w.Write(line)
	}
}

// Write never fails and never waits on the progress writer.
func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if room := c.limit - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
			c.truncated = true
		} else {
			c.buf.Write(p)
		}
	} else if len(p) > 0 {
		c.truncated = true
	}

	if c.lines == nil || c.closed {
		return len(p), nil
	}

	c.pending = append(c.pending, p...)
	for {
		i := bytes.IndexByte(c.pending, '\n')
		if i < 0 {
			break
		}
		c.queue(bytes.Clone(c.pending[:i+1]))
		c.pending = c.pending[i+1:]
	}
	// A single unterminated line cannot grow without bound.
	if len(c.pending) > c.limit {
		c.queue(append(bytes.Clone(c.pending), '\n'))
		c.pending = nil
	}

	return len(p), nil
}

// queue hands line to the forwarder without blocking. c.mu must be held.
func (c *Capture) queue(line []byte) {
	select {
	case c.lines <- line:
	default:
		c.skipped++
	}
}

// Flush forwards a trailing line that had no newline, stops accepting
// progress and waits a bounded time for the progress writer to catch up.
// Output written after Flush is still retained but no longer forwarded.
func (c *Capture) Flush() {
	c.mu.Lock()
	if c.lines == nil || c.closed {
		c.mu.Unlock()
		return
	}
	if len(c.pending) > 0 {
		c.queue(append(c.pending, '\n'))
		c.pending = nil
	}
	if c.skipped > 0 {
		c.queue([]byte(fmt.Sprintf("... %d lines of output not streamed\n", c.skipped)))
	}
	c.closed = true
	close(c.lines)
	c.mu.Unlock()

	select {
	case <-c.drained:
	case <-time.After(drainTimeout):
	}
}

// String returns the retained output.
func (c *Capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Truncated reports whether output was dropped from the retained copy.
func (c *Capture) Truncated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.truncated
}

// Skipped reports how many lines the progress writer never received because
// it fell behind.
func (c *Capture) Skipped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipped
}
