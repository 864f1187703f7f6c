// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/caretrack/internal/domain/analysis"
	"github.com/okian/caretrack/internal/domain/linker"
	"github.com/okian/caretrack/internal/domain/model"
	"github.com/okian/caretrack/internal/domain/summary"
	"github.com/okian/caretrack/internal/domain/types"
	"github.com/okian/caretrack/pkg/logger"
)

const defaultMaxBodyBytes = 1 << 20

// Ingester accepts case records for asynchronous processing.
type Ingester interface {
	IngestEvent(ctx context.Context, caseID string, e model.CaseEvent) (types.Ack, error)
	IngestScale(ctx context.Context, caseID string, r model.ScaleRecord) (types.Ack, error)
}

// Analyzer runs read-side analyses over stored cases.
type Analyzer interface {
	Cases(ctx context.Context) ([]string, error)
	Summary(ctx context.Context, caseID string, q types.Query) (summary.ClinicalSummary, error)
	Stage(ctx context.Context, caseID string, q types.Query) (model.StageResult, error)
	Trends(ctx context.Context, caseID string) (analysis.TrendReport, error)
	Links(ctx context.Context, caseID string, q types.Query) ([]linker.ScaleLink, error)
	Symptoms(ctx context.Context, caseID string, q types.Query) (analysis.SymptomReport, error)
	Report(ctx context.Context, caseID string, q types.Query) (analysis.Report, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Ingester
	Analyzer
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxBodyBytes limits the size of submitted records.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithClock sets the reference time used when a request has no now parameter.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger used for server side failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	eventsHandler *EventsHandler
	casesHandler  *CasesHandler

	maxBodyBytes int64
	clock        func() time.Time
	logger       logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		maxBodyBytes: defaultMaxBodyBytes,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}

	errs := errorWriter{logger: s.logger}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.eventsHandler = NewEventsHandler(deps, s.maxBodyBytes, errs)
	s.casesHandler = NewCasesHandler(deps, s.clock, errs)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /cases/{case}/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("POST /cases/{case}/scales", MetricsMiddleware(s.eventsHandler.HandlePostScale, "scales"))

	mux.HandleFunc("GET /cases", MetricsMiddleware(s.casesHandler.HandleListCases, "cases"))
	mux.HandleFunc("GET /cases/{case}/summary", MetricsMiddleware(s.casesHandler.HandleSummary, "summary"))
	mux.HandleFunc("GET /cases/{case}/stage", MetricsMiddleware(s.casesHandler.HandleStage, "stage"))
	mux.HandleFunc("GET /cases/{case}/trends", MetricsMiddleware(s.casesHandler.HandleTrends, "trends"))
	mux.HandleFunc("GET /cases/{case}/links", MetricsMiddleware(s.casesHandler.HandleLinks, "links"))
	mux.HandleFunc("GET /cases/{case}/symptoms", MetricsMiddleware(s.casesHandler.HandleSymptoms, "symptoms"))
	mux.HandleFunc("GET /cases/{case}/report", MetricsMiddleware(s.casesHandler.HandleReport, "report"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// errorWriter classifies errors and logs the ones that are the server's fault.
type errorWriter struct {
	logger logger.Logger
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		e.logger.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}
