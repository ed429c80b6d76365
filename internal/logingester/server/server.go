package server

import (
	"context"
	"net/http"

	"k8s.io/utils/clock"

	"github.com/G-Research/logingester/internal/common/health"
	"github.com/G-Research/logingester/internal/common/ingest"
	"github.com/G-Research/logingester/internal/common/requestid"
	"github.com/G-Research/logingester/internal/logingester/configuration"
	"github.com/G-Research/logingester/internal/logingester/model"
)

// Buffer is the part of the ingest buffer the http api needs.
type Buffer interface {
	TryEnqueue(event *model.IngestedEvent) bool
	Enqueue(ctx context.Context, event *model.IngestedEvent) error
	FlushNow(ctx context.Context) (int, error)
	Stats() ingest.Stats
}

// Server exposes the ingest api over http.
type Server struct {
	config    configuration.ServerConfig
	token     string
	buffer    Buffer
	readiness health.Checker
	clock     clock.Clock
}

func NewServer(config configuration.ServerConfig, token string, buffer Buffer, readiness health.Checker) *Server {
	return &Server{
		config:    config,
		token:     token,
		buffer:    buffer,
		readiness: readiness,
		clock:     clock.RealClock{},
	}
}

// Handler returns the full route table wrapped in request id and logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	health.SetupHttpMux(mux, s.readiness)

	mux.Handle("/v1/logs", s.route(http.MethodPost, s.ingestOne))
	mux.Handle("/v1/logs/batch", s.route(http.MethodPost, s.ingestBatch))
	mux.Handle("/v1/admin/stats", s.route(http.MethodGet, s.stats))
	mux.Handle("/v1/admin/flush", s.route(http.MethodPost, s.flush))

	return requestid.Middleware(false, logRequests(mux))
}

func (s *Server) route(method string, handler http.HandlerFunc) http.Handler {
	return requireMethod(method, requireToken(s.token, handler))
}
