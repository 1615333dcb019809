package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"hedgeTracker/internal/app"
	"hedgeTracker/internal/domain"
	"hedgeTracker/internal/metrics"
	"hedgeTracker/internal/ports"
)

// WorkspaceHeader selects the workspace of a request. Requests without it use
// the configured default user.
const WorkspaceHeader = "X-Workspace"

// Service is the part of the application service the API needs.
type Service interface {
	DefaultUser() string
	ListPairs(ctx context.Context, username string) ([]*domain.HedgedPair, error)
	GetPair(ctx context.Context, username, id string) (*domain.HedgedPair, error)
	AddPair(ctx context.Context, username string, rec domain.PairRecord) (*domain.HedgedPair, error)
	UpdatePair(ctx context.Context, username, id string, rec domain.PairRecord) (*domain.HedgedPair, error)
	DeletePair(ctx context.Context, username, id string) error
	Summary(ctx context.Context, username string) (*app.Summary, error)
	AssessHedge(ctx context.Context, req app.RiskRequest) (*app.RiskReport, error)
	AssessPair(ctx context.Context, username, id string, balanceA, balanceB *float64) (*app.PairRisk, error)
}

// Server exposes the tracker over HTTP.
type Server struct {
	service Service
	logger  ports.Logger
	metrics *metrics.Metrics // Optional
}

// NewServer creates the HTTP API. m may be nil, which disables /metrics.
func NewServer(service Service, logger ports.Logger, m *metrics.Metrics) *Server {
	return &Server{service: service, logger: logger, metrics: m}
}

// Routes builds the router.
//
//	GET    /healthz
//	GET    /metrics
//	GET    /api/v1/pairs
//	POST   /api/v1/pairs
//	GET    /api/v1/pairs/{id}
//	PUT    /api/v1/pairs/{id}
//	DELETE /api/v1/pairs/{id}
//	GET    /api/v1/pairs/{id}/risk
//	GET    /api/v1/summary
//	POST   /api/v1/risk
func (s *Server) Routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.recovery)
	router.Use(s.logging)

	router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/pairs", s.listPairs).Methods(http.MethodGet)
	api.HandleFunc("/pairs", s.createPair).Methods(http.MethodPost)
	api.HandleFunc("/pairs/{id}", s.getPair).Methods(http.MethodGet)
	api.HandleFunc("/pairs/{id}", s.updatePair).Methods(http.MethodPut)
	api.HandleFunc("/pairs/{id}", s.deletePair).Methods(http.MethodDelete)
	api.HandleFunc("/pairs/{id}/risk", s.pairRisk).Methods(http.MethodGet)
	api.HandleFunc("/summary", s.summary).Methods(http.MethodGet)
	api.HandleFunc("/risk", s.risk).Methods(http.MethodPost)

	return router
}

func (s *Server) workspace(r *http.Request) string {
	if ws := r.Header.Get(WorkspaceHeader); ws != "" {
		return ws
	}
	return s.service.DefaultUser()
}
