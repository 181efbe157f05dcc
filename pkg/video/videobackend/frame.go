package videobackend

import (
	"sync"
	"time"

	"github.com/tauraamui/dragoncam/pkg/video/videoframe"
)

// bufferPool recycles encoded frame buffers between a connection
// and the frames it hands out.
type bufferPool struct {
	pool sync.Pool
}

func (p *bufferPool) get(size int) []byte {
	if b, ok := p.pool.Get().([]byte); ok && cap(b) >= size {
		return b[:size]
	}
	return make([]byte, size)
}

func (p *bufferPool) put(b []byte) {
	p.pool.Put(b[:0]) //nolint
}

// frame copies the encoded bytes into a pooled buffer which is returned
// to the pool when the frame is closed.
func (p *bufferPool) frame(encoded []byte) videoframe.Frame {
	buf := p.get(len(encoded))
	copy(buf, encoded)
	return &pooledFrame{
		data:      buf,
		timestamp: time.Now().UnixNano(),
		release:   p.put,
	}
}

type pooledFrame struct {
	mu        sync.Mutex
	data      []byte
	timestamp int64
	release   func([]byte)
}

func (f *pooledFrame) Data() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data
}

func (f *pooledFrame) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

func (f *pooledFrame) Timestamp() int64 { return f.timestamp }

func (f *pooledFrame) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		return
	}
	if f.release != nil {
		f.release(f.data)
	}
	f.data = nil
}
