package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/ethereum-optimism/infra/op-testengine/metrics"
	"github.com/ethereum-optimism/infra/op-testengine/reporting"
)

const shutdownTimeout = 5 * time.Second

// ResultsFunc returns a snapshot of the current or last session, or nil when
// no session has started yet.
type ResultsFunc func() *reporting.Tree

// Service serves health, Prometheus metrics and session results over HTTP.
type Service struct {
	log     log.Logger
	addr    string
	results ResultsFunc

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	group    *errgroup.Group
	cancel   context.CancelFunc
}

func New(logger log.Logger, addr string, results ResultsFunc) *Service {
	return &Service{
		log:     logger,
		addr:    addr,
		results: results,
	}
}

// Router returns the HTTP routes of the service.
func (s *Service) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/results", s.handleResults).Methods(http.MethodGet)
	r.HandleFunc("/results/{path}", s.handleElement).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(r)
}

// Start binds the listen address and serves in the background until ctx is
// cancelled or Shutdown is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New("service already started")
	}
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)
	server := s.server
	group.Go(func() error {
		s.log.Info("starting service", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metrics.RecordErrorDetails("service", err)
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	s.group = group
	s.cancel = cancel
	return nil
}

// Addr returns the bound address, which differs from the configured one when
// an ephemeral port was requested.
func (s *Service) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server and waits for it to exit.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	group, cancel := s.group, s.cancel
	s.mu.Unlock()
	if group == nil {
		return nil
	}

	s.log.Info("service shutting down")
	cancel()
	if err := group.Wait(); err != nil {
		return err
	}
	s.log.Info("service stopped")
	return nil
}
