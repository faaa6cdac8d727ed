package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/fire-incident-visor/internal/domain"
	"github.com/couchcryptid/fire-incident-visor/internal/render"
)

// Builder produces the dataset for the configured input file.
type Builder interface {
	Build(ctx context.Context) (*domain.Dataset, error)
	Invalidate()
	Path() string
}

// Server serves the dashboard, its JSON endpoints, and the health, readiness
// and metrics routes.
type Server struct {
	httpServer *http.Server
	builder    Builder
	pages      *render.Renderer
	mapOpts    render.MapOptions
	logger     *slog.Logger
}

// NewServer creates an HTTP server backed by builder.
func NewServer(addr string, builder Builder, ready sharedobs.ReadinessChecker, pages *render.Renderer, mapOpts render.MapOptions, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		builder: builder,
		pages:   pages,
		mapOpts: mapOpts,
		logger:  logger,
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(s.logRequests)

	router.Get("/", s.handleDashboard)
	router.Get("/api/incidents.geojson", s.handleGeoJSON)
	router.Get("/api/dropped", s.handleDropped)
	router.Post("/api/reload", s.handleReload)

	router.Get("/healthz", sharedobs.LivenessHandler())
	router.Get("/readyz", sharedobs.ReadinessHandler(ready))
	router.Handle("/metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ds, err := s.builder.Build(r.Context())
	if err != nil {
		s.writeErrorPage(w, err)
		return
	}

	var buf bytes.Buffer
	if err := s.pages.Dashboard(&buf, ds, s.mapOpts); err != nil {
		s.logger.Error("render dashboard failed", "error", err)
		s.writeErrorPage(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w) //nolint:errcheck // client may have disconnected
}

func (s *Server) handleGeoJSON(w http.ResponseWriter, r *http.Request) {
	ds, err := s.builder.Build(r.Context())
	if err != nil {
		s.writeErrorJSON(w, err)
		return
	}

	payload, err := json.Marshal(domain.FeatureCollection(ds.Incidents))
	if err != nil {
		s.logger.Error("encode geojson failed", "error", err)
		s.writeErrorJSON(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload) //nolint:errcheck // client may have disconnected
}

type droppedResponse struct {
	SnapshotID string              `json:"snapshot_id"`
	Source     string              `json:"source"`
	Dropped    []domain.DroppedRow `json:"dropped"`
}

func (s *Server) handleDropped(w http.ResponseWriter, r *http.Request) {
	ds, err := s.builder.Build(r.Context())
	if err != nil {
		s.writeErrorJSON(w, err)
		return
	}

	dropped := ds.Dropped
	if dropped == nil {
		dropped = []domain.DroppedRow{}
	}
	writeJSON(w, http.StatusOK, droppedResponse{
		SnapshotID: ds.SnapshotID,
		Source:     filepath.Base(ds.Source),
		Dropped:    dropped,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.builder.Invalidate()
	if _, err := s.builder.Build(r.Context()); err != nil {
		s.writeErrorPage(w, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// writeErrorPage shows the missing-file notice with 503, or a generic failure
// page with 500. Neither renders a map or table.
func (s *Server) writeErrorPage(w http.ResponseWriter, err error) {
	status, message := s.describe(err)

	var buf bytes.Buffer
	if renderErr := s.pages.Error(&buf, message); renderErr != nil {
		s.logger.Error("render error page failed", "error", renderErr)
		http.Error(w, message, status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w) //nolint:errcheck // client may have disconnected
}

func (s *Server) writeErrorJSON(w http.ResponseWriter, err error) {
	status, message := s.describe(err)
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) describe(err error) (int, string) {
	if errors.Is(err, domain.ErrSourceNotFound) {
		return http.StatusServiceUnavailable, render.MissingFileMessage(s.builder.Path())
	}
	return http.StatusInternalServerError, "No se pudo procesar el archivo " + filepath.Base(s.builder.Path()) + "."
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
