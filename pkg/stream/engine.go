package stream

import (
	"sync"
	"time"

	"github.com/tauraamui/dragoncam/pkg/dragon/process"
	"github.com/tauraamui/dragoncam/pkg/log"
)

type CaptureState int

const (
	CaptureStopped CaptureState = iota
	CaptureRunning
	CaptureDraining
)

func (s CaptureState) String() string {
	switch s {
	case CaptureRunning:
		return "running"
	case CaptureDraining:
		return "draining"
	default:
		return "stopped"
	}
}

type Settings struct {
	Title           string
	Connector       process.Connector
	CaptureInterval time.Duration
	RetryDelay      time.Duration
	GracePeriod     time.Duration
	OnCapture       func()
}

// Engine owns the frame slot, the count of attached sessions and the
// capture process. Capture runs only while at least one session is attached.
type Engine struct {
	mu       sync.Mutex
	settings Settings
	slot     *Slot
	attached int
	capture  process.Process
	stopped  chan struct{}
	starts   int
	closed   bool
}

func NewEngine(settings Settings) *Engine {
	if settings.GracePeriod <= 0 {
		settings.GracePeriod = 100 * time.Millisecond
	}
	return &Engine{settings: settings, slot: NewSlot()}
}

func (e *Engine) Slot() *Slot {
	return e.slot
}

// Attach registers a session, starting capture when it is the first one.
func (e *Engine) Attach() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}

	if e.attached == 0 {
		if err := e.startCapture(); err != nil {
			return err
		}
	}
	e.attached++
	log.Debug("Session attached to camera [%s], %d attached", e.settings.Title, e.attached)
	return nil
}

// Detach unregisters a session. The last one out stops capture and waits up
// to the grace period for the slot to be drained.
func (e *Engine) Detach() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.attached == 0 {
		log.Warn("Detach from camera [%s] with no sessions attached", e.settings.Title)
		return
	}
	e.attached--
	log.Debug("Session detached from camera [%s], %d attached", e.settings.Title, e.attached)
	if e.attached == 0 {
		e.stopCapture()
	}
}

func (e *Engine) startCapture() error {
	if !e.awaitStopped() {
		log.Error("Refusing to start capture from camera [%s], previous capture has not stopped", e.settings.Title)
		return ErrCaptureStillDraining
	}

	proc := process.NewCaptureProcess(e.settings.Connector, e.slot, process.CaptureSettings{
		Title:      e.settings.Title,
		Interval:   e.settings.CaptureInterval,
		RetryDelay: e.settings.RetryDelay,
		OnCapture:  e.settings.OnCapture,
	})
	log.Info("Starting capture from camera [%s]", e.settings.Title)
	proc.Setup().Start()

	stopped := make(chan struct{})
	go func() {
		proc.Wait()
		close(stopped)
	}()
	e.capture = proc
	e.stopped = stopped
	e.starts++
	return nil
}

func (e *Engine) stopCapture() {
	if e.capture == nil {
		return
	}
	log.Info("Stopping capture from camera [%s]", e.settings.Title)
	e.capture.Stop()
	if !e.awaitStopped() {
		log.Error("Capture from camera [%s] did not stop within %s", e.settings.Title, e.settings.GracePeriod)
	}
}

// awaitStopped waits up to the grace period for the current capture process
// to exit, forgetting it once it has.
func (e *Engine) awaitStopped() bool {
	if e.stopped == nil {
		return true
	}
	t := time.NewTimer(e.settings.GracePeriod)
	defer t.Stop()
	select {
	case <-e.stopped:
		e.capture = nil
		e.stopped = nil
		return true
	case <-t.C:
		return false
	}
}

func (e *Engine) State() CaptureState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped == nil {
		return CaptureStopped
	}
	select {
	case <-e.stopped:
		return CaptureStopped
	default:
	}
	if e.attached > 0 {
		return CaptureRunning
	}
	return CaptureDraining
}

func (e *Engine) Attached() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attached
}

// CaptureStarts is the number of capture processes started so far.
func (e *Engine) CaptureStarts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

// Close refuses further attaches and stops capture if it is still running.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.capture != nil {
		e.capture.Stop()
		if !e.awaitStopped() {
			log.Error("Capture from camera [%s] did not stop within %s", e.settings.Title, e.settings.GracePeriod)
		}
	}
}
