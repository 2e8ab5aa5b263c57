package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"pageforge/internal/orchestrator"
	"pageforge/internal/publish"
	"pageforge/internal/session"
	"pageforge/internal/store"
	"pageforge/internal/stream"
)

// Runner starts one generation run and closes the stream when done.
type Runner interface {
	Run(ctx context.Context, req orchestrator.Request, s *stream.Stream)
}

// Persister drives the publish sequence for an assembled page.
type Persister interface {
	Persist(ctx context.Context, req publish.Request) (publish.Result, error)
}

// Server is the HTTP surface: the generation stream over SSE and
// websocket, the persistence endpoints, and the operational endpoints.
type Server struct {
	runner    Runner
	persister Persister
	archive   *publish.Archive
	sessions  *session.Store
	store     *store.Store
	log       *zap.Logger

	httpServer *http.Server
}

func New(addr string, runner Runner, persister Persister, archive *publish.Archive, sessions *session.Store, st *store.Store, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		runner:    runner,
		persister: persister,
		archive:   archive,
		sessions:  sessions,
		store:     st,
		log:       log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/generate", s.handleGenerate)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/persist", s.handlePersist)
	mux.HandleFunc("/api/pages", s.handlePages)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(CORS(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the full middleware-wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.log.Info("listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
