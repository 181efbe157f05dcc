package stream

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/tauraamui/dragoncam/pkg/log"
	"github.com/tauraamui/xerror"
)

type flusher interface {
	Flush()
}

// SessionSettings tune pacing. With a non zero ResendAfter the held frame
// is sent again once no newer frame has arrived for that long.
type SessionSettings struct {
	EmptySlotRetry time.Duration
	ResendAfter    time.Duration
	MaxFPS         int
	OnSent         func(n int)
}

// Session streams the latest frame in the slot to one client until a
// write fails or its context is cancelled.
type Session struct {
	uuid     string
	slot     *Slot
	w        io.Writer
	settings SessionSettings
	lastSeq  uint64
	lastSent time.Time
	sent     int
}

func NewSession(slot *Slot, w io.Writer, settings SessionSettings) *Session {
	if settings.EmptySlotRetry <= 0 {
		settings.EmptySlotRetry = 10 * time.Millisecond
	}
	return &Session{
		uuid:     uuid.NewString(),
		slot:     slot,
		w:        w,
		settings: settings,
	}
}

func (s *Session) UUID() string {
	return s.uuid
}

// Sent is the number of frames written so far.
func (s *Session) Sent() int {
	return s.sent
}

func (s *Session) Run(ctx context.Context) error {
	var minGap time.Duration
	if s.settings.MaxFPS > 0 {
		minGap = time.Second / time.Duration(s.settings.MaxFPS)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		snap, ok := s.slot.SnapshotAfter(s.lastSeq)
		if !ok && s.resendDue() {
			snap, ok = s.slot.Snapshot()
		}
		if !ok {
			if err := wait(ctx, s.settings.EmptySlotRetry); err != nil {
				return err
			}
			continue
		}

		sentAt := time.Now()
		if err := WriteChunk(s.w, snap.Data); err != nil {
			return xerror.Errorf("unable to send frame to session %s: %w", s.uuid, err)
		}
		if f, ok := s.w.(flusher); ok {
			f.Flush()
		}
		s.lastSeq = snap.Seq
		s.lastSent = sentAt
		s.sent++
		log.Debug("Sent frame %d of %d bytes to session %s", snap.Seq, len(snap.Data), s.uuid)
		if s.settings.OnSent != nil {
			s.settings.OnSent(len(snap.Data))
		}

		if minGap > 0 {
			if err := wait(ctx, minGap-time.Since(sentAt)); err != nil {
				return err
			}
		}
	}
}

func (s *Session) resendDue() bool {
	if s.settings.ResendAfter <= 0 || s.sent == 0 {
		return false
	}
	return time.Since(s.lastSent) >= s.settings.ResendAfter
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
