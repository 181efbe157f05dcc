package stream

import (
	"sync"

	"github.com/tauraamui/dragoncam/pkg/video/videoframe"
)

// Snapshot is a caller owned copy of the frame held by a Slot.
type Snapshot struct {
	Data      []byte
	Seq       uint64
	Timestamp int64
}

// Slot holds the most recently captured frame. Installing a new frame
// releases the previous one, and snapshots copy the bytes out under the
// same lock so a reader never sees a released buffer.
type Slot struct {
	mu    sync.Mutex
	frame videoframe.Frame
	seq   uint64
}

func NewSlot() *Slot {
	return &Slot{}
}

func (s *Slot) Install(frame videoframe.Frame) {
	if frame == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame != nil {
		s.frame.Close()
	}
	s.frame = frame
	s.seq++
}

func (s *Slot) Snapshot() (Snapshot, bool) {
	return s.SnapshotAfter(0)
}

// SnapshotAfter copies the held frame only if it was installed after seq.
func (s *Slot) SnapshotAfter(seq uint64) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil || s.seq <= seq {
		return Snapshot{}, false
	}

	data := make([]byte, s.frame.Len())
	copy(data, s.frame.Data())
	return Snapshot{Data: data, Seq: s.seq, Timestamp: s.frame.Timestamp()}, true
}

// Drain releases and clears the held frame, reporting whether there was one.
func (s *Slot) Drain() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frame == nil {
		return false
	}
	s.frame.Close()
	s.frame = nil
	return true
}

func (s *Slot) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame == nil
}

func (s *Slot) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
