// Package api serves the workbench over a local JSON HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/workbench/internal/connection"
	"github.com/leapstack-labs/workbench/internal/history"
	"github.com/leapstack-labs/workbench/pkg/core"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:8765"

// ProfileLister lists saved connection profiles.
type ProfileLister interface {
	List() ([]core.ConnectionProfile, error)
}

// Config holds the dependencies of the API server.
type Config struct {
	Addr     string
	Manager  *connection.Manager
	Profiles ProfileLister
	// History is optional; without it queries are not recorded and the
	// history endpoint returns an empty list.
	History *history.Store
	// MaxRows caps result sets when a request does not set max_rows.
	MaxRows int
	Logger  *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	addr     string
	manager  *connection.Manager
	profiles ProfileLister
	history  *history.Store
	maxRows  int
	events   *Broker
	logger   *slog.Logger
}

// NewServer creates a server from cfg.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		addr:     addr,
		manager:  cfg.Manager,
		profiles: cfg.Profiles,
		history:  cfg.History,
		maxRows:  cfg.MaxRows,
		events:   NewBroker(),
		logger:   logger,
	}
}

// Events returns the broker that publishes query events.
func (s *Server) Events() *Broker {
	return s.events
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		requestLogger(s.logger),
		middleware.Recoverer,
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/connections", s.handleConnections)
		r.Route("/connections/{name}", func(r chi.Router) {
			r.Get("/databases", s.handleDatabases)
			r.Get("/databases/{database}/schemas", s.handleSchemas)
			r.Get("/schemas/{schema}/objects", s.handleObjects)
			r.Get("/schemas/{schema}/tables/{table}/columns", s.handleColumns)
			r.Get("/schemas/{schema}/tables/{table}/indexes", s.handleIndexes)
			r.Get("/schemas/{schema}/tables/{table}/foreign-keys", s.handleForeignKeys)
			r.Post("/query", s.handleQuery)
		})
		r.Get("/history", s.handleHistory)
		r.Get("/events", s.handleEvents)
	})
	return r
}

// Serve listens on the configured address and blocks until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", "addr", "http://"+ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server")
		s.events.Close()
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
