package process

import (
	"context"
	"sync"
	"time"

	"github.com/tauraamui/dragoncam/pkg/camera"
	"github.com/tauraamui/dragoncam/pkg/log"
	"github.com/tauraamui/dragoncam/pkg/video/videoframe"
)

// Connector opens the camera the capture loop reads from.
type Connector func(ctx context.Context) (camera.Connection, error)

// FrameSlot is the single frame holder the capture loop publishes into.
type FrameSlot interface {
	Install(videoframe.Frame)
	Drain() bool
}

type CaptureSettings struct {
	Title      string
	Interval   time.Duration
	RetryDelay time.Duration
	OnCapture  func()
}

type captureProcess struct {
	ctx      context.Context
	cancel   context.CancelFunc
	start    sync.Once
	stop     sync.Once
	connect  Connector
	cam      camera.Connection
	slot     FrameSlot
	settings CaptureSettings
	stopping chan interface{}
}

// NewCaptureProcess builds the loop which repeatedly reads a frame from the
// camera and installs it into the slot until stopped. On stop the slot is
// drained and the camera is closed before Wait returns.
func NewCaptureProcess(connect Connector, slot FrameSlot, settings CaptureSettings) Process {
	ctx, cancel := context.WithCancel(context.Background())
	if settings.Interval <= 0 {
		settings.Interval = 10 * time.Millisecond
	}
	if settings.RetryDelay <= 0 {
		settings.RetryDelay = settings.Interval
	}
	return &captureProcess{
		ctx: ctx, cancel: cancel,
		connect:  connect,
		slot:     slot,
		settings: settings,
		stopping: make(chan interface{}),
	}
}

func (proc *captureProcess) Setup() Process { return proc }

func (proc *captureProcess) Start() {
	proc.start.Do(func() {
		go proc.run()
	})
}

func (proc *captureProcess) run() {
	defer close(proc.stopping)
	for {
		select {
		case <-proc.ctx.Done():
			proc.shutdown()
			return
		default:
			if !proc.sleep(proc.capture()) {
				proc.shutdown()
				return
			}
		}
	}
}

func (proc *captureProcess) capture() time.Duration {
	if proc.cam == nil {
		cam, err := proc.connect(proc.ctx)
		if err != nil {
			if proc.ctx.Err() == nil {
				log.Error("Unable to open camera [%s]: %v", proc.settings.Title, err)
			}
			return proc.settings.RetryDelay
		}
		log.Info("Opened camera [%s] for capture", proc.settings.Title)
		proc.cam = cam
	}

	frame, err := proc.cam.Read()
	if err != nil {
		log.Error("Capture from camera [%s] failed: %v", proc.settings.Title, err)
		return proc.settings.RetryDelay
	}

	log.Debug("Installing frame of %d bytes from camera [%s]", frame.Len(), proc.settings.Title)
	proc.slot.Install(frame)
	if proc.settings.OnCapture != nil {
		proc.settings.OnCapture()
	}
	return proc.settings.Interval
}

func (proc *captureProcess) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-proc.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (proc *captureProcess) shutdown() {
	if proc.slot.Drain() {
		log.Debug("Released last frame from camera [%s]", proc.settings.Title)
	}
	if proc.cam != nil {
		if err := proc.cam.Close(); err != nil {
			log.Error("Unable to close camera [%s]: %v", proc.settings.Title, err)
		}
		proc.cam = nil
	}
	log.Info("Stopped capturing from camera [%s]", proc.settings.Title)
}

func (proc *captureProcess) Stop() {
	proc.stop.Do(proc.cancel)
}

func (proc *captureProcess) Wait() {
	proc.start.Do(func() { close(proc.stopping) })
	<-proc.stopping
}
