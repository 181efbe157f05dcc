package stream_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/tauraamui/dragoncam/pkg/stream"
)

const chunkTrailer = "\r\n--123456789000000000000987654321\r\n"

func TestWriteChunkWritesHeaderBodyAndBoundary(t *testing.T) {
	is := is.New(t)

	buf := bytes.Buffer{}
	is.NoErr(stream.WriteChunk(&buf, []byte{0x01, 0x02, 0x03}))
	is.Equal(buf.String(), "Content-Type: image/jpeg\r\nContent-Length: 3\r\n\r\n\x01\x02\x03"+chunkTrailer)
}

var errClientGone = errors.New("client gone")

type recordingWriter struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	writes  int
	failAt  int
	flushes int
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes++
	if w.failAt > 0 && w.writes >= w.failAt {
		return 0, errClientGone
	}
	return w.buf.Write(p)
}

func (w *recordingWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

func (w *recordingWriter) chunks() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return bytes.Count(w.buf.Bytes(), []byte(chunkTrailer))
}

func TestSessionSendsEachFrameOnce(t *testing.T) {
	is := is.New(t)

	cam := newFakeCamera()
	slot := stream.NewSlot()
	f, _ := cam.Read()
	slot.Install(f)

	w := recordingWriter{}
	sentSizes := []int{}
	session := stream.NewSession(slot, &w, stream.SessionSettings{
		EmptySlotRetry: time.Millisecond,
		OnSent:         func(n int) { sentSizes = append(sentSizes, n) },
	})
	is.True(session.UUID() != "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := session.Run(ctx)

	is.True(errors.Is(err, context.DeadlineExceeded))
	is.Equal(w.chunks(), 1)
	is.Equal(w.flushes, 1)
	is.Equal(session.Sent(), 1)
	is.Equal(sentSizes, []int{len(frameBytes(1))})
}

func TestSessionWaitsForFirstFrame(t *testing.T) {
	is := is.New(t)

	cam := newFakeCamera()
	slot := stream.NewSlot()
	w := recordingWriter{}
	session := stream.NewSession(slot, &w, stream.SessionSettings{EmptySlotRetry: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- session.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	is.Equal(w.chunks(), 0)

	f, _ := cam.Read()
	slot.Install(f)
	waitFor(t, func() bool { return w.chunks() == 1 })

	cancel()
	is.True(errors.Is(<-done, context.Canceled))
}

func TestSessionEndsOnWriteFailure(t *testing.T) {
	is := is.New(t)

	cam := newFakeCamera()
	slot := stream.NewSlot()
	f, _ := cam.Read()
	slot.Install(f)

	// header, body and boundary of the first chunk succeed
	w := recordingWriter{failAt: 4}
	session := stream.NewSession(slot, &w, stream.SessionSettings{EmptySlotRetry: time.Millisecond})

	go func() {
		time.Sleep(5 * time.Millisecond)
		f, _ := cam.Read()
		slot.Install(f)
	}()

	err := session.Run(context.Background())
	is.True(errors.Is(err, errClientGone))
	is.Equal(w.chunks(), 1)
	is.Equal(session.Sent(), 1)
}

func TestSessionMaxFPSLimitsSendRate(t *testing.T) {
	is := is.New(t)

	cam := newFakeCamera()
	slot := stream.NewSlot()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(time.Millisecond):
				f, _ := cam.Read()
				slot.Install(f)
			}
		}
	}()

	w := recordingWriter{}
	session := stream.NewSession(slot, &w, stream.SessionSettings{
		EmptySlotRetry: time.Millisecond, MaxFPS: 10,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	session.Run(ctx)

	is.True(w.chunks() >= 1)
	is.True(w.chunks() <= 3)
}

func TestSessionResendsHeldFrameWhenCameraStalls(t *testing.T) {
	is := is.New(t)

	cam := newFakeCamera()
	slot := stream.NewSlot()
	f, _ := cam.Read()
	slot.Install(f)

	w := recordingWriter{}
	session := stream.NewSession(slot, &w, stream.SessionSettings{
		EmptySlotRetry: time.Millisecond, ResendAfter: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- session.Run(ctx) }()

	waitFor(t, func() bool { return w.chunks() >= 3 })
	cancel()
	is.True(errors.Is(<-done, context.Canceled))

	// only one frame was ever installed, every chunk carries it
	w.mu.Lock()
	defer w.mu.Unlock()
	is.Equal(bytes.Count(w.buf.Bytes(), frameBytes(1)), bytes.Count(w.buf.Bytes(), []byte(chunkTrailer)))
	is.Equal(cam.counts().acquired, 1)
}

func TestSessionDoesNotResendAfterSlotDrained(t *testing.T) {
	is := is.New(t)

	cam := newFakeCamera()
	slot := stream.NewSlot()
	f, _ := cam.Read()
	slot.Install(f)

	w := recordingWriter{}
	session := stream.NewSession(slot, &w, stream.SessionSettings{
		EmptySlotRetry: time.Millisecond, ResendAfter: 2 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- session.Run(ctx) }()

	waitFor(t, func() bool { return w.chunks() >= 1 })
	slot.Drain()
	sent := w.chunks()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	is.True(session.Sent() <= sent+1)
}
