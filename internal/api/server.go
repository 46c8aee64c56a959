// Package api exposes the render agent over a loopback HTTP surface:
// job submission and polling, artifact download, EDL export, and
// toolchain diagnostics.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/clipforge/clipforge-render/internal/engine"
	"github.com/clipforge/clipforge-render/internal/jobs"
	"github.com/clipforge/clipforge-render/internal/playback"
	"github.com/clipforge/clipforge-render/internal/probe"
)

// Renderer is the slice of the engine the handlers need.
type Renderer interface {
	Submit(ctx context.Context, req *engine.RenderRequest) (*jobs.Job, error)
	IsPaused() bool
	QueueDepth() int64
	ActiveCount() int64
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port       int
	Engine     Renderer
	Store      jobs.Store
	Doctor     *probe.CachedDoctor
	Playback   playback.Service
	Logger     *slog.Logger
	StartTime  time.Time
	InstanceID string
	Version    string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
