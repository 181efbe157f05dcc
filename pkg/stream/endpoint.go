package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tauraamui/dragoncam/pkg/log"
)

// Recorder receives throughput events and answers the counters served on /stats.
type Recorder interface {
	RecordSent(endpoint string)
	Captured(window time.Duration) int
	Sent(endpoint string, window time.Duration) int
}

type nopRecorder struct{}

func (nopRecorder) RecordSent(string)              {}
func (nopRecorder) Captured(time.Duration) int     { return 0 }
func (nopRecorder) Sent(string, time.Duration) int { return 0 }

type EndpointSettings struct {
	Name           string
	Address        string
	Path           string
	MaxFPS         int
	EmptySlotRetry time.Duration
	ResendAfter    time.Duration
	Recorder       Recorder
}

type Stats struct {
	Attached           int    `json:"attached"`
	CaptureState       string `json:"capture_state"`
	CapturedLastMinute int    `json:"captured_last_minute"`
	SentLastMinute     int    `json:"sent_last_minute"`
}

// Endpoint serves the multipart stream of one engine on its own address.
// Any number of endpoints may share the same engine.
type Endpoint struct {
	engine   *Engine
	settings EndpointSettings
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

func NewEndpoint(engine *Engine, settings EndpointSettings) *Endpoint {
	if settings.Path == "" {
		settings.Path = "/stream"
	}
	if settings.Recorder == nil {
		settings.Recorder = nopRecorder{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Endpoint{
		engine:   engine,
		settings: settings,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (e *Endpoint) Name() string {
	return e.settings.Name
}

func (e *Endpoint) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(e.settings.Path, e.serveStream)
	mux.HandleFunc("/stats", e.serveStats)
	return mux
}

func (e *Endpoint) serveStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	if err := e.engine.Attach(); err != nil {
		log.Error("Unable to attach stream [%s] session for %s: %v", e.settings.Name, r.RemoteAddr, err)
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	defer e.engine.Detach()

	header := w.Header()
	header.Set("Content-Type", ContentType)
	header.Set("Cache-Control", "no-cache")
	header.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	session := NewSession(e.engine.Slot(), w, SessionSettings{
		EmptySlotRetry: e.settings.EmptySlotRetry,
		ResendAfter:    e.settings.ResendAfter,
		MaxFPS:         e.settings.MaxFPS,
		OnSent:         func(int) { e.settings.Recorder.RecordSent(e.settings.Name) },
	})
	log.Info("Opened stream [%s] session %s for %s", e.settings.Name, session.UUID(), r.RemoteAddr)
	err := session.Run(r.Context())
	log.Info("Closed stream [%s] session %s after %d frames", e.settings.Name, session.UUID(), session.Sent())
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Debug("Stream [%s] session %s ended: %v", e.settings.Name, session.UUID(), err)
	}
}

func (e *Endpoint) serveStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	stats := Stats{
		Attached:           e.engine.Attached(),
		CaptureState:       e.engine.State().String(),
		CapturedLastMinute: e.settings.Recorder.Captured(time.Minute),
		SentLastMinute:     e.settings.Recorder.Sent(e.settings.Name, time.Minute),
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error("Unable to write stream [%s] stats: %v", e.settings.Name, err)
	}
}

// Start binds the endpoint's address and serves in the background.
func (e *Endpoint) Start() error {
	l, err := net.Listen("tcp", e.settings.Address)
	if err != nil {
		return err
	}

	server := &http.Server{
		Handler:     e.Handler(),
		BaseContext: func(net.Listener) context.Context { return e.ctx },
	}
	e.mu.Lock()
	e.server = server
	e.listener = l
	e.mu.Unlock()

	log.Info("Serving stream [%s] on %s%s", e.settings.Name, l.Addr(), e.settings.Path)
	go func() {
		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Stream [%s] stopped serving: %v", e.settings.Name, err)
		}
	}()
	return nil
}

// Addr is the bound address once started.
func (e *Endpoint) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return e.settings.Address
	}
	return e.listener.Addr().String()
}

// Shutdown ends every open session and stops the server.
func (e *Endpoint) Shutdown(ctx context.Context) error {
	e.cancel()
	e.mu.Lock()
	server := e.server
	e.mu.Unlock()
	if server == nil {
		return nil
	}
	log.Info("Shutting down stream [%s]...", e.settings.Name)
	return server.Shutdown(ctx)
}
