package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/storm-outage-risk/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxEventBytes caps the size of a POST /assess body.
const maxEventBytes = 16 << 20

// Assessor evaluates one weather event against the loaded network.
type Assessor interface {
	Assess(ctx context.Context, event domain.WeatherEvent) (domain.Assessment, error)
}

// Server exposes health, readiness, metrics, and on-demand assessment endpoints.
type Server struct {
	httpServer *http.Server
	assessor   Assessor
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /assess routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, assessor Assessor, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		assessor: assessor,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /assess", s.handleAssess)

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

// handleAssess runs one weather event from the request body through the
// assessor and returns the assessment. Malformed events are 400, events the
// model cannot assess are 422.
func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	event, err := domain.ParseWeatherEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	assessment, err := s.assessor.Assess(r.Context(), event)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, domain.ErrInvalidEvent) {
			status = http.StatusBadRequest
		}
		s.logger.Warn("on-demand assessment failed", "event_id", event.ID, "error", err)
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, assessment)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeJSON encodes v before writing the header so an unencodable body is
// reported as a 500 rather than a 200 with no content.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n')) //nolint:errcheck // best-effort response
}
