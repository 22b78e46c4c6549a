// Package server exposes the chart service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/chart"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/kundali"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/logging"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/metrics"
	"github.com/Abhiiiiiinav/Vedic-Sage/pkg/ratelimit"
)

// Version is reported by the index route.
const Version = "3.0.0"

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 10 * time.Second

// Upstream is what the server needs from the gateway besides the service.
type Upstream interface {
	Ping(ctx context.Context) error
	Tracker() *ratelimit.Tracker
}

// Config holds server dependencies.
type Config struct {
	Service  *kundali.Service
	Upstream Upstream

	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
}

// Server routes HTTP requests to the chart service.
type Server struct {
	svc      *kundali.Service
	upstream Upstream
	origins  []string
	logger   zerolog.Logger
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Service == nil || cfg.Upstream == nil {
		return nil, errors.New("service and upstream are required")
	}
	return &Server{
		svc:      cfg.Service,
		upstream: cfg.Upstream,
		origins:  cfg.AllowedOrigins,
		logger:   logging.NewLogger("http"),
	}, nil
}

// routes is served by the index route.
var routes = map[string]string{
	"GET /":              "Service info",
	"GET /health":        "Liveness probe",
	"GET /ready":         "Readiness probe (cache backend)",
	"GET /status":        "Credential health",
	"GET /metrics":       "Prometheus metrics",
	"GET /kundali":       "Chart from query parameters (division defaults to d1)",
	"POST /chart/{div}":  "Any divisional chart (d1, d2, d3, d9, ...)",
	"POST /charts/batch": "Several charts at once",
	"POST /planets":      "D1 planetary positions",
	"POST /kundali/full": "All divisions with extracted positions and nakshatras",
	"GET|POST /rasi":     "D1 shortcut",
	"GET|POST /navamsa":  "D9 shortcut",
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimw.RealIP)
	r.Use(accessLog(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(corsHandler(s.origins))

	r.Get("/", s.handleIndex)
	r.Get("/health", handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/kundali", s.handleKundali)
	r.Post("/chart/{division}", s.handleChart)
	r.Post("/planets", s.handlePlanets)
	r.Post("/charts/batch", s.handleBatch)
	r.Post("/kundali/full", s.handleFull)

	rasi := s.shortcut("d1")
	r.Get("/rasi", rasi)
	r.Post("/rasi", rasi)
	navamsa := s.shortcut("d9")
	r.Get("/navamsa", navamsa)
	r.Post("/navamsa", navamsa)

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "running",
		"service":    "Vedic Sage Chart API",
		"version":    Version,
		"api_source": "Free Astrology API",
		"note":       "Charts are in South Indian style (API default)",
		"divisions":  chart.Codes(),
		"endpoints":  routes,
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.upstream.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Readiness check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "Not ready: %v", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	states, err := s.upstream.Tracker().Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "credential status unavailable", err.Error())
		return
	}

	healthy := 0
	for _, st := range states {
		if st.IsHealthy {
			healthy++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"credentials": states,
		"healthy":     healthy,
		"total":       len(states),
	})
}

// chartResponse is a single chart with optional birth details.
type chartResponse struct {
	Success bool `json:"success"`
	*kundali.ChartResult
	BirthDetails *birthDetails `json:"birth_details,omitempty"`
}

type birthDetails struct {
	Date      string  `json:"date"`
	Time      string  `json:"time"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  float64 `json:"timezone"`
}

func detailsOf(b chart.BirthRequest) *birthDetails {
	return &birthDetails{
		Date:      fmt.Sprintf("%d-%d-%d", b.Year, b.Month, b.Date),
		Time:      fmt.Sprintf("%d:%d:%d", b.Hours, b.Minutes, b.Seconds),
		Latitude:  b.Latitude,
		Longitude: b.Longitude,
		Timezone:  b.Timezone,
	}
}

func (s *Server) handleKundali(w http.ResponseWriter, r *http.Request) {
	raw := queryMap(r)
	division := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("division")))
	if division == "" {
		division = "d1"
	}
	if _, err := chart.LookupVariant(division); err != nil {
		writeUnknownDivision(w, division)
		return
	}

	birth, err := birthFromMap(raw)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	res, err := s.svc.Chart(r.Context(), division, birth)
	if err != nil {
		writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chartResponse{Success: true, ChartResult: res, BirthDetails: detailsOf(birth)})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	division := strings.ToLower(chi.URLParam(r, "division"))
	if _, err := chart.LookupVariant(division); err != nil {
		writeUnknownDivision(w, division)
		return
	}
	s.serveChart(w, r, division, nil)
}

// shortcut serves one fixed division from the query string on GET and from
// the JSON body on POST.
func (s *Server) shortcut(division string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			s.serveChart(w, r, division, queryMap(r))
			return
		}
		s.serveChart(w, r, division, nil)
	}
}

// serveChart answers with one chart. A nil raw reads the JSON body.
func (s *Server) serveChart(w http.ResponseWriter, r *http.Request, division string, raw map[string]any) {
	if raw == nil {
		var err error
		if raw, err = readBody(w, r); err != nil {
			writeBadRequest(w, err)
			return
		}
	}
	birth, err := birthFromMap(raw)
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	res, err := s.svc.Chart(r.Context(), division, birth)
	if err != nil {
		writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chartResponse{Success: true, ChartResult: res})
}

func (s *Server) handlePlanets(w http.ResponseWriter, r *http.Request) {
	birth, _, ok := s.bodyRequest(w, r, "")
	if !ok {
		return
	}

	res, err := s.svc.RawPlanets(r.Context(), birth)
	if err != nil {
		writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*kundali.PlanetsResult
	}{true, res})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	birth, codes, ok := s.bodyRequest(w, r, "charts")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Batch(r.Context(), codes, birth))
}

func (s *Server) handleFull(w http.ResponseWriter, r *http.Request) {
	birth, codes, ok := s.bodyRequest(w, r, "divisions")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Full(r.Context(), codes, birth))
}

// bodyRequest reads birth details and, when listKey is set, a list of
// division codes from the JSON body. It writes the 400 response itself.
func (s *Server) bodyRequest(w http.ResponseWriter, r *http.Request, listKey string) (chart.BirthRequest, []string, bool) {
	raw, err := readBody(w, r)
	if err != nil {
		writeBadRequest(w, err)
		return chart.BirthRequest{}, nil, false
	}

	var codes []string
	if listKey != "" {
		if codes, err = stringList(raw, listKey); err != nil {
			writeBadRequest(w, err)
			return chart.BirthRequest{}, nil, false
		}
	}

	birth, err := birthFromMap(raw)
	if err != nil {
		writeBadRequest(w, err)
		return chart.BirthRequest{}, nil, false
	}
	return birth, codes, true
}
