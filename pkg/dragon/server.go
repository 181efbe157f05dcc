package dragon

import (
	"context"
	"sync"

	"github.com/tauraamui/dragoncam/pkg/camera"
	"github.com/tauraamui/dragoncam/pkg/configdef"
	"github.com/tauraamui/dragoncam/pkg/control"
	"github.com/tauraamui/dragoncam/pkg/database"
	"github.com/tauraamui/dragoncam/pkg/database/dbconn"
	"github.com/tauraamui/dragoncam/pkg/database/repos"
	"github.com/tauraamui/dragoncam/pkg/dragon/process"
	"github.com/tauraamui/dragoncam/pkg/log"
	"github.com/tauraamui/dragoncam/pkg/stats"
	"github.com/tauraamui/dragoncam/pkg/stream"
	"github.com/tauraamui/dragoncam/pkg/video/videobackend"
	"github.com/tauraamui/xerror"
)

var connectDB = database.Connect

type endpoint interface {
	Name() string
	Start() error
	Addr() string
	Shutdown(context.Context) error
}

// Server wires one camera engine to every configured stream and
// control endpoint.
type Server struct {
	shutdownDone chan interface{}
	config       configdef.Values
	mu           sync.Mutex
	backend      videobackend.Backend
	db           dbconn.GormWrapper
	recorder     *stats.Recorder
	engine       *stream.Engine
	controller   *control.Controller
	endpoints    []endpoint
	processes    []process.Process
}

// NewServer resolves the configuration and builds every component it
// names. A nil backend is resolved from the camera configuration.
func NewServer(cr configdef.Resolver, backend videobackend.Backend) (*Server, error) {
	cfg, err := cr.Resolve()
	if err != nil {
		return nil, err
	}

	if backend == nil {
		backend = videobackend.Resolve(cfg.Camera.Backend, videobackend.Options{
			Title:       cfg.Camera.Title,
			JPEGQuality: cfg.Camera.JPEGQuality,
		})
	}

	s := &Server{
		shutdownDone: make(chan interface{}),
		config:       cfg,
		backend:      backend,
	}

	if err := s.connectDatabase(); err != nil {
		return nil, err
	}

	recorder, err := stats.New()
	if err != nil {
		s.closeDatabase()
		return nil, xerror.Errorf("unable to open stats storage: %w", err)
	}
	s.recorder = recorder

	s.engine = stream.NewEngine(stream.Settings{
		Title:           cfg.Camera.Title,
		Connector:       s.connector(),
		CaptureInterval: cfg.Camera.CaptureInterval(),
		RetryDelay:      cfg.Camera.RetryDelay(),
		GracePeriod:     cfg.DetachGracePeriod(),
		OnCapture:       recorder.RecordCapture,
	})

	s.controller = control.NewController(control.LogDriver(), s.presets())

	for _, sc := range cfg.Streams {
		s.endpoints = append(s.endpoints, stream.NewEndpoint(s.engine, stream.EndpointSettings{
			Name:           sc.Name,
			Address:        sc.Address,
			Path:           sc.Path,
			MaxFPS:         sc.MaxFPS,
			EmptySlotRetry: cfg.EmptySlotRetry(),
			ResendAfter:    cfg.ResendAfter(),
			Recorder:       recorder,
		}))
	}

	for _, cc := range cfg.Controls {
		profile, err := control.ParseProfile(cc.Profile)
		if err != nil {
			s.closeStorage()
			return nil, err
		}
		s.endpoints = append(s.endpoints, control.NewEndpoint(s.controller, control.EndpointSettings{
			Name:        cc.Name,
			Address:     cc.Address,
			Path:        cc.Path,
			Profile:     profile,
			RequireAuth: cfg.RequireAuth,
			Secret:      cfg.Secret,
			Users:       s.users(),
		}))
	}

	return s, nil
}

func (s *Server) connectDatabase() error {
	db, err := connectDB()
	if err != nil {
		if s.config.RequireAuth {
			return xerror.Errorf("authentication requires the user database: %w", err)
		}
		log.Warn("Unable to connect to database, speed presets will not persist: %v", err)
		return nil
	}
	s.db = db
	return nil
}

func (s *Server) connector() process.Connector {
	title, addr := s.config.Camera.Title, s.config.Camera.Address
	return func(ctx context.Context) (camera.Connection, error) {
		log.Info("Connecting to camera: [%s@%s]...", title, addr)
		conn, err := camera.ConnectWithCancel(ctx, title, addr, s.backend)
		if err != nil {
			return nil, err
		}
		log.Info("Connected successfully to camera: [%s]", title)
		return conn, nil
	}
}

func (s *Server) presets() control.PresetStore {
	if s.db == nil {
		return nil
	}
	return &repos.SettingRepository{DB: s.db}
}

type userAuthenticator struct {
	repo *repos.UserRepository
}

func (u userAuthenticator) Authenticate(username, password string) (string, error) {
	user, err := u.repo.Authenticate(username, password)
	if err != nil {
		return "", err
	}
	return user.UUID, nil
}

func (s *Server) users() control.Authenticator {
	if s.db == nil {
		return nil
	}
	return userAuthenticator{repo: &repos.UserRepository{DB: s.db}}
}

// Engine exposes the shared capture engine.
func (s *Server) Engine() *stream.Engine {
	return s.engine
}

// Addrs maps each endpoint name to the address it is bound to.
func (s *Server) Addrs() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	addrs := map[string]string{}
	for _, ep := range s.endpoints {
		addrs[ep.Name()] = ep.Addr()
	}
	return addrs
}

func (s *Server) closeDatabase() {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		log.Error("Unable to close database connection: %v", err)
	}
}

func (s *Server) closeStorage() {
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			log.Error("Unable to close stats storage: %v", err)
		}
	}
	s.closeDatabase()
}

func (s *Server) shutdown() {
	s.shutdownProcesses()
	log.Info("Closing camera [%s] engine...", s.config.Camera.Title)
	s.engine.Close()
	s.closeStorage()
	close(s.shutdownDone)
}

// Shutdown stops every endpoint, ends capture and releases storage.
// The returned channel is closed once all of that is done.
func (s *Server) Shutdown() chan interface{} {
	s.shutdown()
	return s.shutdownDone
}
