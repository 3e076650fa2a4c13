// Package web implements the thin HTTP façade (spec §4.I): info, read,
// subscribe, and the optional write and search endpoints. Handlers hold
// only read access to the Tree; all mutation goes through the
// ChangeProcessor's write channel.
package web

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Roblox/rojo/internal/changeproc"
	"github.com/Roblox/rojo/internal/config"
	"github.com/Roblox/rojo/internal/logger"
	"github.com/Roblox/rojo/internal/project"
	"github.com/Roblox/rojo/internal/queue"
	"github.com/Roblox/rojo/internal/search"
	"github.com/Roblox/rojo/internal/tree"
)

// ProtocolVersion is the integer clients check for compatibility (spec §6).
const ProtocolVersion = 1

// ServerVersion is reported verbatim in GET /api/rojo.
const ServerVersion = "0.1.0"

// Deps bundles the session state the façade reads from. All fields except
// Search are required; a nil Search disables the /api/v1/search endpoint.
type Deps struct {
	SessionID uuid.UUID
	Project   *project.Project
	Tree      *tree.Tree
	Queue     *queue.Queue
	Processor *changeproc.Processor
	Search    *search.Index
}

// Server is the HTTP façade over a single session.
type Server struct {
	mu      sync.RWMutex
	cfg     *config.Config
	deps    Deps
	server  *http.Server
	started bool
}

// NewServer builds the façade's route table and underlying http.Server but
// does not start listening; call Start for that.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/rojo", s.handleInfo)
	mux.HandleFunc("/api/read/", s.handleRead)
	mux.HandleFunc("/api/subscribe/", s.handleSubscribe)
	mux.HandleFunc("/api/write", s.handleWrite)

	if s.deps.Search != nil && s.cfg.Search.Enabled {
		mux.HandleFunc("/api/v1/search", s.handleSearch)
	}
}

// Start begins serving in a background goroutine, returning once the
// listener is up or an immediate bind error occurs.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("web: server already started")
	}
	s.started = true
	s.mu.Unlock()

	logger.WithField("address", s.server.Addr).Info("starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop gracefully shuts the HTTP server down, waiting up to 10s for
// in-flight requests to finish. Long-polling subscribers are not woken by
// this call: each one holds the shutdown until its subscription returns or
// the 10s wait ends.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	logger.Info("stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("web: server shutdown failed: %w", err)
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	logger.Info("HTTP server stopped")
	return nil
}
