package process

import (
	"context"
	"sync"

	"github.com/tauraamui/dragoncam/pkg/log"
)

// Process is a piece of long running work owned by the server. Stop only
// requests shutdown, Wait blocks until the work has fully stopped.
type Process interface {
	Setup() Process
	Start()
	Stop()
	Wait()
}

// Settings name a process and give the function which runs it. Run is
// handed a context cancelled by Stop and returns channels which close once
// everything it started has stopped.
type Settings struct {
	Name string
	Run  func(context.Context) []chan interface{}
}

func New(settings Settings) Process {
	return &process{name: settings.Name, run: settings.Run}
}

type process struct {
	mu       sync.Mutex
	name     string
	run      func(context.Context) []chan interface{}
	cancel   context.CancelFunc
	stopping bool
	stopped  []chan interface{}
}

func (p *process) Setup() Process { return p }

// Start runs the process once, later calls do nothing.
func (p *process) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil || p.stopping {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.stopped = p.run(ctx)
	log.Debug("Started %s", p.name)
}

func (p *process) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopping {
		return
	}
	p.stopping = true
	if p.cancel == nil {
		return
	}
	log.Info("Stopping %s...", p.name)
	p.cancel()
}

func (p *process) Wait() {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	for _, sig := range stopped {
		<-sig
	}
}
