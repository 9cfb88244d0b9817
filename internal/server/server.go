// Package server provides the HTTP API for GeoCopilot.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yosgi/GeoCopilot/internal/config"
	"github.com/yosgi/GeoCopilot/internal/export"
	"github.com/yosgi/GeoCopilot/internal/history"
	"github.com/yosgi/GeoCopilot/internal/ingest"
	"github.com/yosgi/GeoCopilot/internal/persist"
	"github.com/yosgi/GeoCopilot/internal/query"
	"github.com/yosgi/GeoCopilot/internal/store"
	"github.com/yosgi/GeoCopilot/internal/vector"
	"go.uber.org/zap"
)

// Server is the HTTP server for the GeoCopilot API.
type Server struct {
	ingest   *ingest.Service
	query    *query.Engine
	exporter *export.Exporter
	saver    *persist.Saver
	index    vector.Index
	meta     *store.Metadata
	pool     *store.Pool
	history  *history.Store
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. A nil history
// store disables the /history endpoint.
func NewServer(
	ing *ingest.Service,
	qry *query.Engine,
	exp *export.Exporter,
	saver *persist.Saver,
	idx vector.Index,
	meta *store.Metadata,
	pool *store.Pool,
	hist *history.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		ingest:   ing,
		query:    qry,
		exporter: exp,
		saver:    saver,
		index:    idx,
		meta:     meta,
		pool:     pool,
		history:  hist,
		config:   cfg,
		logger:   logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// No request timeout middleware: summary requests are bounded by the
	// provider client timeout instead.
	r.Use(middleware.Compress(5))

	r.Post("/insert_json_batch", s.handleInsertBatch)
	r.Post("/query", s.handleQuery)
	r.Post("/query/summary", s.handleQuerySummary)
	r.Get("/status", s.handleStatus)
	r.Post("/save_now", s.handleSaveNow)
	r.Get("/export/three_files", s.handleExportBundle)
	r.Get("/export/database_json", s.handleExportDatabaseJSON)
	r.Get("/export/faiss_index", s.handleExportIndex)
	r.Get("/export/metadata_pkl", s.handleExportMetadata)
	r.Get("/history", s.handleHistory)
	r.Get("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
