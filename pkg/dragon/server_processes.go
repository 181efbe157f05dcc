package dragon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tauraamui/dragoncam/pkg/dragon/process"
	"github.com/tauraamui/dragoncam/pkg/log"
)

const endpointShutdownTimeout = 5 * time.Second

func (s *Server) SetupProcesses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ep := range s.endpoints {
		proc := process.New(process.Settings{
			Name: fmt.Sprintf("endpoint [%s]", ep.Name()),
			Run:  serveEndpoint(ep),
		})
		s.processes = append(s.processes, proc.Setup())
	}
}

func serveEndpoint(ep endpoint) func(context.Context) []chan interface{} {
	return func(ctx context.Context) []chan interface{} {
		stopped := make(chan interface{})
		if err := ep.Start(); err != nil {
			log.Error("Unable to start endpoint [%s]: %v", ep.Name(), err)
			close(stopped)
			return []chan interface{}{stopped}
		}

		go func() {
			defer close(stopped)
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), endpointShutdownTimeout)
			defer cancel()
			if err := ep.Shutdown(shutdownCtx); err != nil {
				log.Error("Unable to shutdown endpoint [%s]: %v", ep.Name(), err)
			}
		}()
		return []chan interface{}{stopped}
	}
}

func (s *Server) RunProcesses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, proc := range s.processes {
		proc.Start()
	}
}

func (s *Server) shutdownProcesses() {
	s.mu.Lock()
	procs := s.processes
	s.processes = nil
	s.mu.Unlock()

	wg := sync.WaitGroup{}
	wg.Add(len(procs))
	for _, proc := range procs {
		go func(wg *sync.WaitGroup, proc process.Process) {
			proc.Stop()
			proc.Wait()
			wg.Done()
		}(&wg, proc)
	}
	wg.Wait()
}
