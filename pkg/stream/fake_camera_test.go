package stream_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tauraamui/dragoncam/pkg/camera"
	"github.com/tauraamui/dragoncam/pkg/dragon/process"
	"github.com/tauraamui/dragoncam/pkg/video/videoframe"
)

// fakeCamera hands out frames whose bytes all equal the acquire count and
// whose length is derived from it, and tracks every release.
type fakeCamera struct {
	mu             sync.Mutex
	acquired       int
	released       int
	doubleReleases int
	failedReads    int
	failing        bool
	opens          int
	closes         int
	gate           chan struct{}
	blocked        chan struct{}
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{blocked: make(chan struct{}, 1)}
}

func frameBytes(n int) []byte {
	return bytes.Repeat([]byte{byte(n)}, n%16+1)
}

func (c *fakeCamera) connector() process.Connector {
	return func(context.Context) (camera.Connection, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.opens++
		return c, nil
	}
}

func (c *fakeCamera) UUID() string    { return "fake-camera" }
func (c *fakeCamera) Title() string   { return "fake" }
func (c *fakeCamera) IsOpen() bool    { return true }
func (c *fakeCamera) IsClosing() bool { return false }

func (c *fakeCamera) Read() (videoframe.Frame, error) {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		select {
		case c.blocked <- struct{}{}:
		default:
		}
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		c.failedReads++
		return nil, errors.New("camera unavailable")
	}
	c.acquired++
	return &fakeFrame{cam: c, data: frameBytes(c.acquired), ts: time.Now().UnixNano()}, nil
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeCamera) setFailing(failing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failing = failing
}

func (c *fakeCamera) setGate(gate chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate = gate
}

type cameraCounts struct {
	acquired, released, doubleReleases, failedReads, opens, closes int
}

func (c *fakeCamera) counts() cameraCounts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cameraCounts{
		acquired: c.acquired, released: c.released, doubleReleases: c.doubleReleases,
		failedReads: c.failedReads, opens: c.opens, closes: c.closes,
	}
}

type fakeFrame struct {
	cam      *fakeCamera
	data     []byte
	ts       int64
	released bool
}

func (f *fakeFrame) Data() []byte     { return f.data }
func (f *fakeFrame) Len() int         { return len(f.data) }
func (f *fakeFrame) Timestamp() int64 { return f.ts }

func (f *fakeFrame) Close() {
	f.cam.mu.Lock()
	defer f.cam.mu.Unlock()
	if f.released {
		f.cam.doubleReleases++
		return
	}
	f.released = true
	f.cam.released++
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-timeout:
			t.Fatal("test timeout 3s limit exceeded")
		case <-time.After(time.Millisecond):
		}
	}
}
