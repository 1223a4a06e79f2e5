// Package server exposes the timeline resolver over HTTP. Routing is a
// stdlib ServeMux with method/path patterns; responses use a uniform
// success/error envelope so the grid UI can treat per-item errors as data
// and reserve non-200 statuses for request-level failures.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parcelgrid/proforma/internal/model"
	"github.com/parcelgrid/proforma/internal/store"
)

type Server struct {
	cfg        model.Config
	configPath string
	store      *store.Store
	logger     *zap.Logger
	level      zap.AtomicLevel

	httpSrv  *http.Server
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires the routes and timeouts. configPath may be empty, in which case
// the config watcher is not started.
func New(cfg model.Config, configPath string, st *store.Store, logger *zap.Logger, level zap.AtomicLevel) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:        cfg,
		configPath: configPath,
		store:      st,
		logger:     logger,
		level:      level,
		ctx:        ctx,
		cancel:     cancel,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /projects/{projectID}/timeline/calculate", s.handleCalculate)
	mux.HandleFunc("GET /projects/{projectID}/timeline", s.handleTimeline)

	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	s.httpSrv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           s.withLogging(s.withRecovery(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout,
	}
	return s
}

// Start begins listening and serving. It returns once the listener is bound,
// so callers can immediately resolve Addr().
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Server.ListenAddr, err)
	}
	s.listener = listener

	if s.configPath != "" {
		if err := s.watchConfig(); err != nil {
			// Hot reload is a convenience, not a requirement.
			s.logger.Warn("config watch unavailable", zap.Error(err))
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("serve", zap.Error(err))
		}
	}()

	s.logger.Info("server started", zap.String("addr", s.Addr()))
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Server.ListenAddr
	}
	return s.listener.Addr().String()
}

// Stop drains in-flight requests up to the shutdown timeout.
func (s *Server) Stop() error {
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(s.cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	err := s.httpSrv.Shutdown(ctx)
	s.wg.Wait()
	return err
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, envelope{Success: false, Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in handler",
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()))
				s.writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
