package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jackzampolin/bindery/internal/api"
	"github.com/jackzampolin/bindery/internal/config"
	"github.com/jackzampolin/bindery/internal/ghostwriter"
	"github.com/jackzampolin/bindery/internal/home"
	"github.com/jackzampolin/bindery/internal/images"
	"github.com/jackzampolin/bindery/internal/jobs"
	"github.com/jackzampolin/bindery/internal/server/endpoints"
	"github.com/jackzampolin/bindery/internal/svcctx"
)

// Server is the main Bindery HTTP server. It owns the job store and
// controller lifecycle: both come up before the listener and the
// controller drains before the store closes on shutdown.
type Server struct {
	httpServer *http.Server
	store      *jobs.Store
	controller *jobs.Controller
	producer   ghostwriter.Producer
	configMgr  *config.Manager
	home       *home.Dir
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8585)
	Port int
	// Home is the bindery home directory
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8585
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		return nil, fmt.Errorf("home directory is required")
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		home:      cfg.Home,
		logger:    cfg.Logger,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start brings up the job store, controller and HTTP listener.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.home.EnsureExists(); err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to prepare home directory: %w", err)
	}

	appCfg := config.DefaultConfig()
	if s.configMgr != nil {
		appCfg = s.configMgr.Get()
	}

	// Open the job store
	store, err := jobs.Open(s.home.JobsDBPath(), s.logger)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to open job store: %w", err)
	}
	s.store = store

	// Create the content producer
	producer, err := ghostwriter.New(ghostwriter.Config{
		Backend:    appCfg.Ghostwriter.Backend,
		Model:      appCfg.Ghostwriter.Model,
		APIKey:     appCfg.GhostwriterAPIKey(),
		BaseURL:    appCfg.Ghostwriter.BaseURL,
		MaxRetries: appCfg.Ghostwriter.MaxRetries,
	}, s.logger)
	if err != nil {
		store.Close()
		s.setNotRunning()
		return fmt.Errorf("failed to create content producer: %w", err)
	}
	s.producer = producer

	// Create the job controller
	controller, err := jobs.NewController(jobs.ControllerConfig{
		Store:    store,
		Home:     s.home,
		Producer: producer,
		Extractor: images.NewExtractor(images.ExtractorConfig{
			MaxEdge: appCfg.Images.MaxEdge,
			Logger:  s.logger,
		}),
		Logger:            s.logger,
		Workers:           appCfg.Jobs.Workers,
		QueueSize:         appCfg.Jobs.QueueSize,
		MaxDegradedImages: appCfg.Jobs.MaxDegradedImages,
	})
	if err != nil {
		store.Close()
		s.setNotRunning()
		return fmt.Errorf("failed to create job controller: %w", err)
	}
	s.controller = controller

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		Controller: controller,
		Store:      store,
		Producer:   producer,
		Config:     s.configMgr,
		Logger:     s.logger,
		Home:       s.home,
	}

	// Run the controller until shutdown
	ctrlCtx, ctrlCancel := context.WithCancel(context.Background())
	ctrlDone := make(chan struct{})
	go func() {
		controller.Start(ctrlCtx)
		close(ctrlDone)
	}()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			runErr = fmt.Errorf("HTTP server error: %w", err)
		}
	}

	shutdownErr := s.shutdown(ctrlCancel, ctrlDone)
	if runErr != nil {
		return runErr
	}
	return shutdownErr
}

// shutdown stops the listener, drains the controller and closes the
// store, in that order.
func (s *Server) shutdown(ctrlCancel context.CancelFunc, ctrlDone chan struct{}) error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	ctrlCancel()
	select {
	case <-ctrlDone:
	case <-shutdownCtx.Done():
		s.logger.Error("job controller did not drain before deadline")
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error("job store close error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Controller returns the job controller.
// Returns nil if the server hasn't started yet.
func (s *Server) Controller() *jobs.Controller {
	return s.controller
}

// Store returns the job store.
// Returns nil if the server hasn't started yet.
func (s *Server) Store() *jobs.Store {
	return s.store
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the store or controller aren't ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil || s.controller == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
