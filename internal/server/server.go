// Package server exposes tag navigation over a JSON HTTP API. The server
// owns one loaded tree, shared read-only, and a bounded set of sessions.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agentic-research/tagnav/api"
	"github.com/agentic-research/tagnav/internal/session"
	"github.com/agentic-research/tagnav/internal/tagtree"
	"github.com/agentic-research/tagnav/internal/transport"
)

// DefaultMaxSessions bounds the session table; the least recently used
// session is dropped first.
const DefaultMaxSessions = 1024

type Config struct {
	Listen      string
	AllowAll    bool // allow all CORS origins
	MaxSessions int
}

// entry serialises access to one session.
type entry struct {
	mu sync.Mutex
	s  *session.Session
}

type Server struct {
	cfg      Config
	page     *api.Page
	tree     *tagtree.Tree
	prefetch *transport.Prefetcher
	logger   *slog.Logger

	// refs is every payload reference in tree; /api/refs serves nothing else.
	refs map[string]struct{}

	sessions *lru.Cache[string, *entry]

	router     chi.Router
	httpServer *http.Server
}

// New builds the server. prefetch may be nil, in which case no frames are
// warmed and /api/refs is not served. Only references that appear in a
// payload of tree are ever served.
func New(cfg Config, page *api.Page, tree *tagtree.Tree, prefetch *transport.Prefetcher, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	sessions, err := lru.New[string, *entry](cfg.MaxSessions)
	if err != nil {
		return nil, err
	}
	refs := make(map[string]struct{})
	if err := tree.Leaves(func(_ []string, p *tagtree.Payload) error {
		for _, ref := range p.Refs {
			refs[ref] = struct{}{}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		page:     page,
		tree:     tree,
		prefetch: prefetch,
		logger:   logger,
		refs:     refs,
		sessions: sessions,
	}
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/page", s.handlePage)
		r.Get("/resolve", s.handleResolve)
		r.Get("/refs/*", s.handleRef)
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreate)
			r.Get("/{id}", s.handleView)
			r.Delete("/{id}", s.handleDelete)
			r.Post("/{id}/select", s.handleSelect)
			r.Post("/{id}/step", s.handleStep)
		})
	})
	return r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.logger.Info("tagnav server listening", "addr", s.cfg.Listen)
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// newSession builds a session at the page default with query applied.
func (s *Server) newSession(query string) (*session.Session, error) {
	opts := []session.Option{session.WithLogger(s.logger)}
	if s.prefetch != nil {
		opts = append(opts, session.WithPrefetcher(s.prefetch))
	}
	sess, err := session.New(s.page, s.tree, opts...)
	if err != nil {
		return nil, err
	}
	if query != "" {
		sess.Init(query)
	}
	return sess, nil
}

func (s *Server) lookup(id string) (*entry, bool) {
	return s.sessions.Get(id)
}
