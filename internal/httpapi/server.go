// Package httpapi exposes the generation pipeline, job queue and
// provider router over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/abhisek/quizforge/internal/cache"
	"github.com/abhisek/quizforge/internal/jobs"
	"github.com/abhisek/quizforge/internal/llm"
	"github.com/abhisek/quizforge/internal/pipeline"
	"github.com/abhisek/quizforge/internal/quiz"
	"github.com/abhisek/quizforge/internal/router"
)

// Server wires the HTTP handlers to the application components. Cache
// and queue may be nil; the matching endpoints then report 503.
type Server struct {
	pipeline *pipeline.Pipeline
	router   *router.Router
	cache    *cache.Cache
	queue    *jobs.Queue
	jobStore *jobs.Store
}

// New builds the server.
func New(pl *pipeline.Pipeline, rt *router.Router, c *cache.Cache, q *jobs.Queue, js *jobs.Store) *Server {
	return &Server{pipeline: pl, router: rt, cache: c, queue: q, jobStore: js}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)

		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.handleSubmitJob)
			r.Get("/", s.handleListJobs)
			r.Route("/{jobID}", func(r chi.Router) {
				r.Get("/", s.handleGetJob)
				r.Delete("/", s.handleCancelJob)
			})
		})

		r.Route("/providers", func(r chi.Router) {
			r.Get("/", s.handleListProviders)
			r.Post("/switch", s.handleSwitchProvider)
			r.Post("/test", s.handleTestProviders)
			r.Get("/stats", s.handleRoutingStats)
			r.Delete("/stats", s.handleResetRoutingStats)
		})

		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", s.handleCacheStats)
			r.Delete("/", s.handleCacheClear)
		})

		r.Get("/health", s.handleHealth)
	})
	return r
}

// generateRequest is the POST /api/generate and POST /api/jobs payload.
type generateRequest struct {
	Text    string       `json:"text"`
	Options quiz.Options `json:"options"`
}

func decodeGenerateRequest(r *http.Request) (generateRequest, error) {
	req := generateRequest{Options: quiz.DefaultOptions()}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, errors.New("malformed JSON body: " + err.Error())
	}
	if req.Text == "" {
		return req, errors.New("text is required")
	}
	if err := req.Options.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeGenerateRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	qs, err := s.pipeline.Generate(r.Context(), req.Text, req.Options)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("job queue disabled"))
		return
	}
	req, err := decodeGenerateRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	job, err := s.queue.Submit(r.Context(), jobs.Params{Text: req.Text, Options: req.Options})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if s.jobStore == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("job queue disabled"))
		return
	}
	list, err := s.jobStore.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.jobStore == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("job queue disabled"))
		return
	}
	job, err := s.jobStore.Get(r.Context(), chi.URLParam(r, "jobID"))
	if errors.Is(err, jobs.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("job queue disabled"))
		return
	}
	err := s.queue.Cancel(r.Context(), chi.URLParam(r, "jobID"))
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, jobs.ErrNotCancellable):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": string(jobs.StatusCancelled)})
	}
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.List())
}

func (s *Server) handleSwitchProvider(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Provider == "" {
		writeError(w, http.StatusBadRequest, errors.New("provider is required"))
		return
	}
	if err := s.router.Switch(req.Provider); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"current": req.Provider})
}

func (s *Server) handleTestProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.TestAll(r.Context()))
}

func (s *Server) handleRoutingStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.router.RoutingStats())
}

func (s *Server) handleResetRoutingStats(w http.ResponseWriter, r *http.Request) {
	s.router.ResetRoutingStats()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("cache disabled"))
		return
	}
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("cache disabled"))
		return
	}
	n, err := s.cache.Clear(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cleared": n})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"currentProvider": s.router.Current(),
	})
}

// statusForError maps the adapter error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	var (
		cfgErr   *llm.ConfigurationError
		parseErr *llm.ParseError
		trErr    *llm.TransientError
	)
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &trErr):
		return http.StatusBadGateway
	case errors.As(err, &parseErr):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
