// Package http serves the output of the last successful build from memory.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aretw0/bale/internal/logging"
	"github.com/aretw0/bale/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// Bundle is the part of a bundler the dev server reads from.
type Bundle interface {
	Output(name string) ([]byte, bool)
	OutputNames() []string
	Result() *domain.BuildResult
	LastSuccessful() *domain.BuildResult
	Stage() domain.Stage
}

// Status is the body of GET /__bale/status.
type Status struct {
	Stage     domain.Stage      `json:"stage"`
	BuildID   string            `json:"build_id,omitempty"`
	Succeeded bool              `json:"succeeded"`
	Errors    []string          `json:"errors,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
	Stats     domain.BuildStats `json:"stats"`
	Outputs   []string          `json:"outputs"`
}

// Server holds the routes of the dev server.
type Server struct {
	bundle  Bundle
	events  *Events
	metrics http.Handler
	logger  *slog.Logger
}

type Option func(*Server)

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithEvents streams build notifications at /__bale/events.
func WithEvents(e *Events) Option {
	return func(s *Server) {
		s.events = e
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewHandler creates the dev server handler for b.
func NewHandler(b Bundle, opts ...Option) http.Handler {
	s := &Server{bundle: b, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/health", s.health)
	r.Route("/__bale", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/manifest", s.manifest)
		if s.events != nil {
			r.Get("/events", s.subscribe)
		}
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Get("/*", s.file)
	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	st := Status{Stage: s.bundle.Stage(), Outputs: s.bundle.OutputNames()}
	if res := s.bundle.Result(); res != nil {
		st.BuildID = res.BuildID
		st.Succeeded = res.Succeeded()
		st.Errors = res.ErrorStrings()
		st.Warnings = res.WarningStrings()
		st.Stats = res.Stats
	}
	if st.Outputs == nil {
		st.Outputs = []string{}
	}
	writeJSON(w, s.logger, http.StatusOK, st)
}

func (s *Server) manifest(w http.ResponseWriter, r *http.Request) {
	data, ok := s.bundle.Output("manifest.json")
	if !ok {
		http.Error(w, "no manifest yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// file serves an emitted output. The query string is ignored so cache-busted
// asset URLs ("logo.png?3f2a") resolve to the same file.
func (s *Server) file(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+chi.URLParam(r, "*")), "/")
	if name == "" {
		s.status(w, r)
		return
	}
	data, ok := s.bundle.Output(name)
	if !ok {
		if s.bundle.LastSuccessful() == nil {
			http.Error(w, "no successful build yet", http.StatusServiceUnavailable)
			return
		}
		http.NotFound(w, r)
		return
	}
	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.events.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: build\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "err", err)
	}
}

// ListenAndServe runs handler on addr until ctx is done, then shuts down
// gracefully within grace.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, grace time.Duration, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("dev server listening", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn("graceful shutdown did not complete", "after", grace, "err", err)
		return srv.Close()
	}
	logger.Info("dev server stopped")
	return nil
}
