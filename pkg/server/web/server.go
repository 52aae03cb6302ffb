// Package web provides the plumbing for the form pages and the RESTful API.
package web

import (
	"context"
	"errors"
	"expvar"
	"net"
	"net/http"
	"time"

	"github.com/formmailer/formmailer/pkg/config"
	"github.com/formmailer/formmailer/pkg/metric"
	"github.com/formmailer/formmailer/pkg/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

var (
	// Router is shared between the form and rest packages.  It sends incoming requests to the
	// correct handler function.
	Router = mux.NewRouter()

	rootConfig *config.Root
	store      storage.Store

	expRequests, expFormPosts, expRedirects *metric.Counter
)

func init() {
	m := expvar.NewMap("http")
	expRequests = metric.NewCounter(m, "Requests")
	expFormPosts = metric.NewCounter(m, "FormPosts")
	expRedirects = metric.NewCounter(m, "Redirects")
}

// Server defines an instance of the web server.
type Server struct {
	http           *http.Server
	listener       net.Listener
	globalShutdown chan bool
	notify         chan error
}

// NewServer sets up things for unit tests or the Start() method.
func NewServer(conf *config.Root, shutdownChan chan bool, st storage.Store) *Server {
	rootConfig = conf
	store = st

	Router.NotFoundHandler = noMatchHandler(http.StatusNotFound, "No route matches URI path")
	Router.MethodNotAllowedHandler = noMatchHandler(
		http.StatusMethodNotAllowed, "Method not allowed for URI path")

	return &Server{
		http: &http.Server{
			Addr:         conf.Web.Addr,
			Handler:      requestLoggingWrapper(Router),
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  2 * time.Minute,
		},
		globalShutdown: shutdownChan,
		notify:         make(chan error, 1),
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start(ctx context.Context) {
	slog := log.With().Str("module", "web").Str("phase", "startup").Logger()
	var err error
	s.listener, err = net.Listen("tcp", s.http.Addr)
	if err != nil {
		slog.Error().Err(err).Msg("HTTP failed to start TCP listener")
		s.emergencyShutdown()
		return
	}
	slog.Info().Str("addr", s.listener.Addr().String()).Msg("HTTP listening on tcp")

	// Listener go routine.
	go s.serve(ctx)

	// Wait for shutdown.
	<-ctx.Done()
	slog = log.With().Str("module", "web").Str("phase", "shutdown").Logger()
	slog.Debug().Msg("HTTP server shutting down on request")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		slog.Error().Err(err).Msg("Failed to shutdown HTTP server")
	}
}

// serve begins serving HTTP requests.
func (s *Server) serve(ctx context.Context) {
	// server.Serve blocks until we close the listener.
	err := s.http.Serve(s.listener)

	select {
	case <-ctx.Done():
		// Nop.
	default:
		if errors.Is(err, http.ErrServerClosed) {
			return
		}
		log.Error().Str("module", "web").Err(err).Msg("HTTP server failed")
		s.notify <- err
		close(s.notify)
		s.emergencyShutdown()
	}
}

func (s *Server) emergencyShutdown() {
	// Shutdown the daemon.
	select {
	case <-s.globalShutdown:
	default:
		close(s.globalShutdown)
	}
}

// Notify allows the running HTTP server to be monitored for a fatal error.
func (s *Server) Notify() <-chan error {
	return s.notify
}
