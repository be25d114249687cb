// Package server joins presentation layer and rendering engine host. Engine
// host connects to /engine websocket and runs engine worker there, the
// presentation layer posts edits to /edit.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"neon/config"
	"neon/engine"
	"neon/journal"
)

// ErrNoEngine is returned when no engine host connected in time.
var ErrNoEngine = errors.New("rendering engine is not connected")

// maxBody limits request bodies, MEI pages are large.
const maxBody = 64 << 20

// Server is safe for concurrent use.
type Server struct {
	log      *zap.Logger
	cfg      *config.Config
	journal  *journal.Journal
	rpt      *config.Report
	upgrader websocket.Upgrader

	mu     sync.Mutex
	client *engine.Client
	// ready is closed and replaced when engine becomes available
	ready chan struct{}

	// edits are applied one at a time across all presentation clients
	edit sync.Mutex
}

// New creates server. Journal and report may be nil.
func New(cfg *config.Config, j *journal.Journal, rpt *config.Report, log *zap.Logger) *Server {
	return &Server{
		log:     log.Named("server"),
		cfg:     cfg,
		journal: j,
		rpt:     rpt,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 16,
			WriteBufferSize: 1 << 16,
			CheckOrigin:     checkOrigin(cfg.Server.AllowedOrigins),
		},
		ready: make(chan struct{}),
	}
}

// Handler returns server routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /engine", s.handleEngine)
	mux.HandleFunc("POST /render", s.handleRender)
	mux.HandleFunc("POST /edit", s.handleEdit)
	mux.HandleFunc("POST /classify", s.handleClassify)
	mux.HandleFunc("GET /journal", s.handleJournal)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// UseEngine installs engine client, previous one is closed.
func (s *Server) UseEngine(c *engine.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.log.Debug("Closing previous engine", zap.Error(err))
		}
	}
	s.client = c
	close(s.ready)
	s.ready = make(chan struct{})
}

func (s *Server) dropEngine(c *engine.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == c {
		s.client = nil
	}
}

// engine returns connected engine waiting for one when necessary.
func (s *Server) engine(ctx context.Context) (*engine.Client, error) {
	var timeout <-chan time.Time
	if d := s.cfg.Server.EngineReadyTimeout; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}
	for {
		s.mu.Lock()
		c, ready := s.client, s.ready
		s.mu.Unlock()
		if c != nil {
			return c, nil
		}
		select {
		case <-ready:
		case <-timeout:
			return nil, ErrNoEngine
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close disconnects engine.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// ListenAndServe serves until context is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errs := make(chan error, 1)
	go func() {
		s.log.Info("Listening", zap.String("address", srv.Addr))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		return fmt.Errorf("unable to shutdown server: %w", err)
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return s.Close()
}

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (s *Server) handleEngine(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Server.EngineToken.Matches(bearer(r)) {
		s.log.Warn("Engine host rejected", zap.String("remote", r.RemoteAddr))
		respondError(w, http.StatusUnauthorized, "engine token mismatch")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader already replied
		s.log.Warn("Unable to upgrade engine connection", zap.Error(err))
		return
	}
	tr := engine.NewWSTransport(conn, s.log)
	c := engine.NewClient(tr, s.log)
	s.log.Info("Engine host connected", zap.String("remote", r.RemoteAddr))
	s.UseEngine(c)

	go func() {
		<-tr.Done()
		s.log.Info("Engine host disconnected", zap.String("remote", r.RemoteAddr))
		s.dropEngine(c)
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	connected := s.client != nil
	s.mu.Unlock()
	respond(w, http.StatusOK, map[string]bool{"engine": connected})
}
