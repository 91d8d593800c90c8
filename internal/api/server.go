// Package api exposes geocoding, import and reporting over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/jobmap/internal/batch"
	"github.com/sells-group/jobmap/internal/geocoderun"
	"github.com/sells-group/jobmap/internal/importer"
	"github.com/sells-group/jobmap/internal/store"
	"github.com/sells-group/jobmap/pkg/geocode"
)

// maxBodyBytes caps request bodies; an import of the maximum row count
// fits comfortably.
const maxBodyBytes = 10 << 20

// Server holds the dependencies shared by every handler.
type Server struct {
	store       store.Store
	geocoder    geocode.Client
	importer    *importer.Importer
	runner      *geocoderun.Runner
	corsOrigins []string

	geocodeBatch  batch.Options
	geocodeOnLoad bool
}

// Deps are the collaborators a Server needs.
type Deps struct {
	Store       store.Store
	Geocoder    geocode.Client
	Importer    *importer.Importer
	Runner      *geocoderun.Runner
	CORSOrigins []string

	// GeocodeBatch tunes the worker pool used when an import geocodes.
	GeocodeBatch batch.Options
	// GeocodeOnLoad is used when an import request does not say whether to geocode.
	GeocodeOnLoad bool
}

// NewServer returns a Server wired to d.
func NewServer(d Deps) *Server {
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		store:       d.Store,
		geocoder:    d.Geocoder,
		importer:    d.Importer,
		runner:      d.Runner,
		corsOrigins: origins,

		geocodeBatch:  d.GeocodeBatch,
		geocodeOnLoad: d.GeocodeOnLoad,
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/geocode", s.handleGeocode)
		r.Post("/geocode", s.handleGeocode)
		r.Post("/geocode/run", s.handleGeocodeRun)
		r.Post("/import", s.handleImport)
		r.Get("/report", s.handleReport)
		r.Get("/jobs.geojson", s.handleJobsGeoJSON)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
