package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/harunnryd/stackchat/internal/concurrency"
	"github.com/harunnryd/stackchat/internal/config"
	"github.com/harunnryd/stackchat/internal/conversation"

	"github.com/yuin/goldmark"
)

//go:embed templates/*.html
var templateFS embed.FS

const cookieName = "stackchat_conversation"

// Server serves the chat page and the JSON API.
type Server struct {
	cfg      *config.Config
	registry *conversation.Registry

	page        *template.Template
	markdown    goldmark.Markdown
	mux         *http.ServeMux
	server      *http.Server
	shutdownTTL time.Duration
	done        <-chan error

	initialized bool
	started     bool
	mu          sync.RWMutex
	startTime   time.Time
}

type Health struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

func NewServer(cfg *config.Config, registry *conversation.Registry) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		markdown: newMarkdown(),
	}
}

func (s *Server) Name() string {
	return "HTTPServer"
}

func (s *Server) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := template.New("index.html").Funcs(template.FuncMap{
		"markdown": s.renderMarkdown,
		"pretty":   prettyText,
		"args":     prettyArgs,
	}).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return fmt.Errorf("parse page template: %w", err)
	}
	s.page = page

	readTimeout, err := config.DurationOrDefault(s.cfg.Server.ReadTimeout, config.DefaultServerReadTimeout)
	if err != nil {
		return fmt.Errorf("parse server read timeout: %w", err)
	}
	writeTimeout, err := config.DurationOrDefault(s.cfg.Server.WriteTimeout, config.DefaultServerWriteTimeout)
	if err != nil {
		return fmt.Errorf("parse server write timeout: %w", err)
	}
	idleTimeout, err := config.DurationOrDefault(s.cfg.Server.IdleTimeout, config.DefaultServerIdleTimeout)
	if err != nil {
		return fmt.Errorf("parse server idle timeout: %w", err)
	}
	shutdownTimeout, err := config.DurationOrDefault(s.cfg.Server.ShutdownTimeout, config.DefaultServerShutdownTimeout)
	if err != nil {
		return fmt.Errorf("parse server shutdown timeout: %w", err)
	}

	s.mux = http.NewServeMux()
	s.routes(s.mux)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	s.shutdownTTL = shutdownTimeout

	s.initialized = true
	slog.Info("HTTPServer initialized", "component", s.Name(), "port", s.cfg.Server.Port)
	return nil
}

// Handler returns the routed handler. Init must have been called.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mux
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return fmt.Errorf("HTTPServer not initialized")
	}

	srv := s.server
	s.done = concurrency.SafeGo("http-server", func() error {
		slog.Info("HTTP server listening", "component", s.Name(), "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "component", s.Name(), "error", err)
			return err
		}
		return nil
	})

	s.started = true
	s.startTime = time.Now()
	slog.Info("HTTPServer started", "component", s.Name())
	return nil
}

// Done receives the listener's exit error once the server stops serving.
func (s *Server) Done() <-chan error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		slog.Info("HTTPServer not started, skipping stop", "component", s.Name())
		return nil
	}

	slog.Info("Stopping HTTPServer...", "component", s.Name())
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTTL)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTPServer shutdown error", "component", s.Name(), "error", err)
		return err
	}

	s.started = false
	slog.Info("HTTPServer stopped", "component", s.Name(), "uptime", time.Since(s.startTime).Round(time.Second))
	return nil
}

func (s *Server) Health(ctx context.Context) Health {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case !s.initialized:
		return Health{Name: s.Name(), Error: "not initialized"}
	case !s.started:
		return Health{Name: s.Name(), Error: "not started"}
	default:
		return Health{Name: s.Name(), Healthy: true}
	}
}
