// Package server serves tutoring sessions over websockets.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/koscakluka/ema-tutor/core/tutoring"
)

// Handler processes the inbound messages of a connection, see
// [tutoring.Tutor.Handle].
type Handler interface {
	Handle(ctx context.Context, conn tutoring.Conn, msg tutoring.Message) error
}

// ConnectionObserver is told about connection lifecycle and rejected
// messages.
type ConnectionObserver interface {
	ConnectionOpened()
	ConnectionClosed()
	RateLimited()
}

type Options struct {
	// AllowedOrigins restricts websocket origins, empty allows any.
	AllowedOrigins    []string
	MessagesPerSecond float64
	MessageBurst      int
	WriteTimeout      time.Duration

	Observer ConnectionObserver
	// Gatherer backs /metrics, nil disables the route.
	Gatherer prometheus.Gatherer
	// Health is checked by /health.
	Health func(ctx context.Context) error
}

type Server struct {
	handler  Handler
	options  Options
	upgrader websocket.Upgrader
	router   chi.Router
}

func New(handler Handler, options Options) *Server {
	if options.MessagesPerSecond <= 0 {
		options.MessagesPerSecond = 5
	}
	if options.MessageBurst <= 0 {
		options.MessageBurst = 20
	}
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = 10 * time.Second
	}
	if options.Observer == nil {
		options.Observer = nopObserver{}
	}

	s := &Server{handler: handler, options: options}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 16 << 10,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Group(func(r chi.Router) {
		r.Use(otelhttp.NewMiddleware("tutor"))
		r.Get("/", s.handleRoot)
		r.Get("/health", s.handleHealth)
		if s.options.Gatherer != nil {
			r.Handle("/metrics", promhttp.HandlerFor(s.options.Gatherer, promhttp.HandlerOpts{}))
		}
	})
	r.Get("/learning-interface", s.handleLearningInterface)
	return r
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, readHeaderTimeout, shutdownTimeout time.Duration) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.options.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(s.options.AllowedOrigins, r.Header.Get("Origin"))
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Tutor is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.options.Health != nil {
		if err := s.options.Health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLearningInterface(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	s.options.Observer.ConnectionOpened()
	defer s.options.Observer.ConnectionClosed()
	logger.Info("client connected", "remote", r.RemoteAddr, "request_id", middleware.GetReqID(r.Context()))

	s.serveConn(r.Context(), ws)
	logger.Info("client disconnected", "remote", r.RemoteAddr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened() {}
func (nopObserver) ConnectionClosed() {}
func (nopObserver) RateLimited()      {}
