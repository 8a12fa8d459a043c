// Package server exposes the parish explorer over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/KaramelBytes/parish-explorer/internal/dataset"
	"github.com/KaramelBytes/parish-explorer/internal/recommend"
	"github.com/KaramelBytes/parish-explorer/internal/selection"
	"github.com/KaramelBytes/parish-explorer/internal/utils"
)

// SessionHeader carries the caller's session id in both directions.
const SessionHeader = "X-Session-ID"

// maxBody bounds JSON request bodies.
const maxBody = 1 << 20

// TableSource yields the current dataset. Implementations may cache.
type TableSource func(ctx context.Context) (*dataset.Table, error)

// Config wires the server's collaborators. Recommender may be nil, in which
// case /api/recommend answers 503.
type Config struct {
	Tables      TableSource
	Store       selection.Store
	Recommender *recommend.Service
	Logger      *slog.Logger
}

type Server struct {
	router      chi.Router
	tables      TableSource
	store       selection.Store
	recommender *recommend.Service
	logger      *slog.Logger
}

func New(cfg Config) (*Server, error) {
	if cfg.Tables == nil {
		return nil, fmt.Errorf("table source required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:      chi.NewRouter(),
		tables:      cfg.Tables,
		store:       cfg.Store,
		recommender: cfg.Recommender,
		logger:      logger,
	}
	s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "dur", time.Since(start))
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/metrics", s.handleMetrics)
		r.Group(func(r chi.Router) {
			r.Use(s.session)
			r.Post("/view", s.handleView)
			r.Post("/apply", s.handleApply)
			r.Delete("/selection", s.handleClear)
			r.Post("/recommend", s.handleRecommend)
			r.Post("/chart", s.handleChart)
			r.Post("/export", s.handleExport)
			r.Post("/describe", s.handleDescribe)
		})
	})
}

type sessionKey struct{}

// session resolves the caller's session id, minting one when absent, and
// echoes it back in the response header.
func (s *Server) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			id = selection.NewSessionID()
		} else if !utils.ValidID(id) {
			writeError(s.logger, w, http.StatusBadRequest, fmt.Errorf("%w: %q", selection.ErrInvalidSession, id))
			return
		}
		w.Header().Set(SessionHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
	})
}

func sessionID(ctx context.Context) string {
	if id, ok := ctx.Value(sessionKey{}).(string); ok {
		return id
	}
	return selection.DefaultSession
}

func decodeInput(r *http.Request) (selection.Input, error) {
	var in selection.Input
	if r.Body == nil {
		return in, nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		return in, fmt.Errorf("decode request: %w", err)
	}
	return in, nil
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dataset.ErrUnknownMetric),
		errors.Is(err, selection.ErrNoMetrics),
		errors.Is(err, selection.ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, recommend.ErrRemoteUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Cause   string `json:"cause,omitempty"`
}

func writeError(logger *slog.Logger, w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
