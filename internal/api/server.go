// Package api exposes the HTTP interface for the fetch service.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/crawlkit/fetchd/internal/dispatcher"
	"github.com/crawlkit/fetchd/internal/fetch"
)

// Server wires HTTP handlers to the dispatcher.
type Server struct {
	router       chi.Router
	dispatcher   *dispatcher.Dispatcher
	idGen        fetch.IDGenerator
	defaultDelay time.Duration
	logger       *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The metrics
// handler is injected so this package stays free of registry plumbing.
func NewServer(
	d *dispatcher.Dispatcher,
	idGen fetch.IDGenerator,
	metricsHandler http.Handler,
	defaultDelay time.Duration,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		dispatcher:   d,
		idGen:        idGen,
		defaultDelay: defaultDelay,
		logger:       logger,
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", s.stats)
		r.Post("/fetch", s.submitFetch)
	})

	s.router = r
	return s
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statsResponse is the snapshot returned by GET /v1/stats.
type statsResponse struct {
	ActiveFetches  int     `json:"active_fetches"`
	QueuedFetches  int     `json:"queued_fetches"`
	FetchesPerSec  float64 `json:"fetches_per_second"`
	TrackedDomains int     `json:"tracked_domains"`
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, statsResponse{
		ActiveFetches:  s.dispatcher.ActiveFetches(),
		QueuedFetches:  s.dispatcher.QueuedFetches(),
		FetchesPerSec:  s.dispatcher.CurrentRate(),
		TrackedDomains: s.dispatcher.TrackedDomains(),
	})
}

type fetchSubmission struct {
	URL          string `json:"url"`
	CrawlDelayMS int    `json:"crawl_delay_ms"`
}

type fetchAccepted struct {
	RequestID string `json:"request_id"`
	DomainKey string `json:"domain_key"`
}

func (s *Server) submitFetch(w http.ResponseWriter, r *http.Request) {
	var body fetchSubmission
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if body.URL == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("url is required"))
		return
	}
	delay := s.defaultDelay
	if body.CrawlDelayMS > 0 {
		delay = time.Duration(body.CrawlDelayMS) * time.Millisecond
	}
	id, err := s.idGen.NewID()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("generate id: %w", err))
		return
	}
	req, err := fetch.NewRequest(id, body.URL, delay)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.dispatcher.Dispatch(r.Context(), req)
	s.writeJSON(w, http.StatusAccepted, fetchAccepted{RequestID: req.ID, DomainKey: req.DomainKey})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
