// Package http serves the collision data API.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/collision-data-api/internal/artifact"
	"github.com/couchcryptid/collision-data-api/internal/domain"
	"github.com/couchcryptid/collision-data-api/internal/predict"
	"github.com/couchcryptid/collision-data-api/internal/tabular"
)

// TabularService pages through the exposed tables.
type TabularService interface {
	FetchPage(ctx context.Context, table domain.Table, page, pageSize int) ([]byte, error)
	PageInfo(ctx context.Context, table domain.Table, page, pageSize int) (tabular.PageInfo, error)
}

// ArtifactSource returns cached aggregate CSVs.
type ArtifactSource interface {
	Materialize(ctx context.Context, kind domain.AggregateKind) (artifact.Entry, error)
}

// Predictor answers at-fault predictions.
type Predictor interface {
	Predict(features domain.PartyFeatures) predict.Result
}

// AuditPublisher records audit events. Publishing is best effort.
type AuditPublisher interface {
	Publish(ctx context.Context, event domain.AuditEvent) error
}

// Deps are the collaborators behind the API routes. Audit may be nil; Clock
// stamps audit events and defaults to the real clock.
type Deps struct {
	Tabular   TabularService
	Artifacts ArtifactSource
	Predictor Predictor
	Catalog   domain.Catalog
	Audit     AuditPublisher
	Ready     sharedobs.ReadinessChecker
	Clock     clockwork.Clock
}

// Server exposes the data, prediction, health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	deps       Deps
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewServer creates an HTTP server with every API route registered.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		clock:  clock,
		logger: logger,
	}

	mux.HandleFunc("GET /data_info", s.handleDataInfo)
	mux.HandleFunc("GET /head", s.handleHead)
	mux.HandleFunc("GET /page_info", s.handlePageInfo)
	mux.HandleFunc("GET /data.csv", s.handleArtifact(domain.AggregateAtFaultVehicles))
	mux.HandleFunc("GET /traumas.csv", s.handleArtifact(domain.AggregateTraumas))
	mux.HandleFunc("GET /theory", s.handleText(deps.Catalog.Theory))
	mux.HandleFunc("GET /preview_message", s.handleText(deps.Catalog.PreviewMessage))
	mux.HandleFunc("POST /predict", s.handlePredict)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

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

func (s *Server) audit(ctx context.Context, event domain.AuditEvent) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("audit publish failed", "kind", event.Kind, "id", event.ID, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}
