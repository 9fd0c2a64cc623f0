package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"github.com/cartridge/gather/internal/metrics"
	"github.com/cartridge/gather/internal/middleware"
	"github.com/cartridge/gather/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const shutdownTimeout = 5 * time.Second

// Server exposes collected episode summaries over HTTP.
type Server struct {
	store   storage.Store
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// NewServer constructs a Server instance.
func NewServer(store storage.Store, collector *metrics.Collector, logger zerolog.Logger) *Server {
	if collector == nil {
		collector = metrics.NewCollector(zerolog.Nop())
	}
	return &Server{store: store, metrics: collector, logger: logger}
}

// Routes builds the HTTP router for the status service.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(s.metrics))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/runs/{run}/episodes", s.handleListEpisodes)
		r.Get("/runs/{run}/episodes/{episode}", s.handleGetEpisode)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Status server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		s.logger.Info().Msg("Status server stopped")
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListEpisodes(w http.ResponseWriter, r *http.Request) {
	run := chi.URLParam(r, "run")
	episodes, err := s.store.ListEpisodes(r.Context(), run)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run":      run,
		"count":    len(episodes),
		"episodes": episodes,
	})
}

func (s *Server) handleGetEpisode(w http.ResponseWriter, r *http.Request) {
	run := chi.URLParam(r, "run")
	episode, err := strconv.Atoi(chi.URLParam(r, "episode"))
	if err != nil || episode < 0 {
		s.writeError(w, http.StatusBadRequest, "episode must be a non-negative integer")
		return
	}
	summary, err := s.store.GetEpisode(r.Context(), run, episode)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error().Err(err).Msg("store request failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
