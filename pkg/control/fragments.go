package control

import (
	"bufio"
	"encoding/binary"
	"net"
	"net/http"
	"sync"
)

const (
	opContinuation = 0x0
	opText         = 0x1
	opBinary       = 0x2
)

// fragmentWatcher sits between the hijacked connection and the websocket
// reader, noting for every data message in arrival order whether the
// client split it across frames.
type fragmentWatcher struct {
	net.Conn
	mu         sync.Mutex
	header     []byte
	remaining  uint64
	inMessage  bool
	fragmented []bool
}

func (fw *fragmentWatcher) Read(p []byte) (int, error) {
	n, err := fw.Conn.Read(p)
	if n > 0 {
		fw.observe(p[:n])
	}
	return n, err
}

func (fw *fragmentWatcher) observe(b []byte) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	for len(b) > 0 {
		if fw.remaining > 0 {
			skip := uint64(len(b))
			if skip > fw.remaining {
				skip = fw.remaining
			}
			fw.remaining -= skip
			b = b[skip:]
			continue
		}

		fw.header = append(fw.header, b[0])
		b = b[1:]
		if len(fw.header) < headerLen(fw.header) {
			continue
		}
		fw.frame()
	}
}

// headerLen is the full header size implied by the bytes read so far.
func headerLen(h []byte) int {
	if len(h) < 2 {
		return 2
	}
	n := 2
	switch h[1] & 0x7f {
	case 126:
		n += 2
	case 127:
		n += 8
	}
	if h[1]&0x80 != 0 {
		n += 4
	}
	return n
}

func (fw *fragmentWatcher) frame() {
	h := fw.header
	fin := h[0]&0x80 != 0
	opcode := h[0] & 0x0f

	switch length := uint64(h[1] & 0x7f); length {
	case 126:
		fw.remaining = uint64(binary.BigEndian.Uint16(h[2:4]))
	case 127:
		fw.remaining = binary.BigEndian.Uint64(h[2:10])
	default:
		fw.remaining = length
	}
	fw.header = fw.header[:0]

	switch opcode {
	case opText, opBinary:
		if fin {
			fw.fragmented = append(fw.fragmented, false)
			return
		}
		fw.inMessage = true
	case opContinuation:
		if fin && fw.inMessage {
			fw.fragmented = append(fw.fragmented, true)
			fw.inMessage = false
		}
	}
}

// next reports whether the oldest unread data message arrived fragmented.
func (fw *fragmentWatcher) next() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if len(fw.fragmented) == 0 {
		return false
	}
	fragmented := fw.fragmented[0]
	fw.fragmented = fw.fragmented[1:]
	return fragmented
}

// watchingResponseWriter hands the upgrader a connection read through a
// fragmentWatcher.
type watchingResponseWriter struct {
	http.ResponseWriter
	watcher *fragmentWatcher
}

func (w watchingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	conn, brw, err := hj.Hijack()
	if err != nil {
		return nil, nil, err
	}
	// bytes already buffered make the upgrader refuse the handshake
	if brw.Reader.Buffered() > 0 {
		return conn, brw, nil
	}
	w.watcher.Conn = conn
	return w.watcher, bufio.NewReadWriter(bufio.NewReader(w.watcher), brw.Writer), nil
}
