package session

import (
	"errors"
	"sync"
	"time"
)

type fakeConn struct {
	mu       sync.Mutex
	frames   [][]byte
	closed   int
	writeErr error
	written  chan struct{}
	deadline time.Time
}

func newFakeConn() *fakeConn {
	return &fakeConn{written: make(chan struct{}, 64)}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	if c.writeErr != nil {
		err := c.writeErr
		c.mu.Unlock()
		return err
	}
	if c.closed > 0 {
		c.mu.Unlock()
		return errors.New("use of closed connection")
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	c.mu.Unlock()
	select {
	case c.written <- struct{}{}:
	default:
	}
	return nil
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Deadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.frames))
	for i, f := range c.frames {
		out[i] = string(f)
	}
	return out
}

func (c *fakeConn) Closed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) waitFrames(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if len(c.Frames()) >= n {
			return true
		}
		select {
		case <-c.written:
		case <-deadline:
			return false
		}
	}
}
