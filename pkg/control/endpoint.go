package control

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tauraamui/dragoncam/pkg/auth"
	"github.com/tauraamui/dragoncam/pkg/log"
)

const maxMessageSize = 256

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Authenticator checks user credentials, returning the user's UUID.
type Authenticator interface {
	Authenticate(username, password string) (string, error)
}

type EndpointSettings struct {
	Name        string
	Address     string
	Path        string
	Profile     Profile
	RequireAuth bool
	Secret      string
	Users       Authenticator
}

// Endpoint accepts websocket control clients and applies their commands
// to a shared Controller.
type Endpoint struct {
	controller *Controller
	settings   EndpointSettings
	mu         sync.Mutex
	conns      map[*websocket.Conn]struct{}
	handlers   sync.WaitGroup
	closing    bool
	server     *http.Server
	listener   net.Listener
}

func NewEndpoint(controller *Controller, settings EndpointSettings) *Endpoint {
	if settings.Path == "" {
		settings.Path = "/ws"
	}
	return &Endpoint{
		controller: controller,
		settings:   settings,
		conns:      map[*websocket.Conn]struct{}{},
	}
}

func (e *Endpoint) Name() string {
	return e.settings.Name
}

func (e *Endpoint) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(e.settings.Path, e.serveWS)
	mux.HandleFunc("/auth", e.serveAuth)
	return mux
}

func (e *Endpoint) serveAuth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if e.settings.Users == nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	username, password, ok := r.BasicAuth()
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	userUUID, err := e.settings.Users.Authenticate(username, password)
	if err != nil {
		log.Warn("Control [%s] auth failed for %s: %v", e.settings.Name, username, err)
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	token, err := auth.GenToken(e.settings.Secret, userUUID)
	if err != nil {
		log.Error("Unable to generate token for %s: %v", username, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"token": token}); err != nil {
		log.Error("Unable to write token response: %v", err)
	}
}

func (e *Endpoint) serveWS(w http.ResponseWriter, r *http.Request) {
	if e.settings.RequireAuth {
		if _, err := auth.ValidateToken(e.settings.Secret, r.URL.Query().Get("token")); err != nil {
			log.Warn("Control [%s] rejected %s: %v", e.settings.Name, r.RemoteAddr, err)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
	}

	watcher := &fragmentWatcher{}
	conn, err := upgrader.Upgrade(watchingResponseWriter{ResponseWriter: w, watcher: watcher}, r, nil)
	if err != nil {
		log.Error("Control [%s] websocket upgrade error: %v", e.settings.Name, err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	if !e.track(conn) {
		conn.Close()
		return
	}
	defer e.handlers.Done()
	defer e.untrack(conn)

	e.controller.Open(e.settings.Profile)
	log.Info("Control [%s] connection opened from %s", e.settings.Name, r.RemoteAddr)

	for {
		messageType, msg, err := conn.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				log.Info("Control [%s] connection closed by client", e.settings.Name)
			case errors.Is(err, websocket.ErrReadLimit):
				log.Warn("Control [%s] message exceeded %d bytes, closing connection", e.settings.Name, maxMessageSize)
			default:
				log.Debug("Control [%s] connection ended: %v", e.settings.Name, err)
			}
			return
		}

		if watcher.next() {
			log.Warn("Control [%s] ignoring fragmented message", e.settings.Name)
			continue
		}

		if messageType != websocket.TextMessage {
			log.Warn("Control [%s] ignoring non text message", e.settings.Name)
			continue
		}

		reply, err := e.handle(msg)
		if err != nil {
			log.Warn("Control [%s] ignoring command: %v", e.settings.Name, err)
			continue
		}
		if reply == nil {
			continue
		}
		if err := conn.WriteJSON(reply); err != nil {
			log.Error("Control [%s] failed to send reply: %v", e.settings.Name, err)
			return
		}
	}
}

func (e *Endpoint) handle(msg []byte) (*SpeedReply, error) {
	cmd, err := ParseCommand(msg)
	if err != nil {
		return nil, err
	}
	log.Debug("Control [%s] received %s", e.settings.Name, cmd.Cmd)
	return e.controller.Apply(e.settings.Profile, cmd)
}

func (e *Endpoint) track(conn *websocket.Conn) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closing {
		return false
	}
	e.handlers.Add(1)
	e.conns[conn] = struct{}{}
	return true
}

func (e *Endpoint) untrack(conn *websocket.Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.conns, conn)
	conn.Close()
}

// Start binds the endpoint's address and serves in the background.
func (e *Endpoint) Start() error {
	l, err := net.Listen("tcp", e.settings.Address)
	if err != nil {
		return err
	}

	server := &http.Server{Handler: e.Handler()}
	e.mu.Lock()
	e.server = server
	e.listener = l
	e.mu.Unlock()

	log.Info("Serving control [%s] on %s%s", e.settings.Name, l.Addr(), e.settings.Path)
	go func() {
		if err := server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Control [%s] stopped serving: %v", e.settings.Name, err)
		}
	}()
	return nil
}

func (e *Endpoint) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return e.settings.Address
	}
	return e.listener.Addr().String()
}

// Connections is the number of open control connections.
func (e *Endpoint) Connections() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns)
}

// Shutdown stops accepting clients, closes every open control connection
// and waits for their handlers to return.
func (e *Endpoint) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closing = true
	server := e.server
	for conn := range e.conns {
		conn.Close()
	}
	e.mu.Unlock()

	handlersDone := make(chan struct{})
	go func() {
		e.handlers.Wait()
		close(handlersDone)
	}()
	select {
	case <-handlersDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	if server == nil {
		return nil
	}
	log.Info("Shutting down control [%s]...", e.settings.Name)
	return server.Shutdown(ctx)
}
