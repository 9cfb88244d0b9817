// Package query runs nearest-neighbor retrieval and grounded summaries over
// the equipment database.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yosgi/GeoCopilot/internal/config"
	"github.com/yosgi/GeoCopilot/internal/embedding"
	"github.com/yosgi/GeoCopilot/internal/llm"
	"github.com/yosgi/GeoCopilot/internal/models"
	"github.com/yosgi/GeoCopilot/internal/store"
	"github.com/yosgi/GeoCopilot/internal/vector"
)

// Query modes reported to the activity log.
const (
	ModeQuery   = "query"
	ModeSummary = "summary"
)

// promptTemplate wraps retrieved equipment context and the user question.
// The wording is fixed; downstream consumers depend on the answer style it
// produces.
const promptTemplate = "\nYou are an engineering assistant. Given the following equipment information:\n\n%s\n\nAnswer the question: \"%s\"\n"

// Recorder receives query outcomes for the activity log.
type Recorder interface {
	RecordQuery(ctx context.Context, mode, query string, topK, results int, elapsed time.Duration) error
}

// Engine answers equipment queries against the vector index and record store.
type Engine struct {
	index     vector.Index
	meta      *store.Metadata
	embedder  embedding.Embedder
	generator llm.Generator
	cfg       *config.QueryConfig
	recorder  Recorder
	logger    *zap.Logger // optional; when set, logs query outcomes
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for query outcome logging.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithRecorder sets an activity log recorder. Recording failures are logged
// and never fail the query.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine creates a query engine with the given dependencies.
func NewEngine(
	index vector.Index,
	meta *store.Metadata,
	embedder embedding.Embedder,
	generator llm.Generator,
	cfg *config.QueryConfig,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		index:     index,
		meta:      meta,
		embedder:  embedder,
		generator: generator,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search embeds the query and returns the nearest records in ascending
// distance order. Positions without a stored record are skipped.
func (e *Engine) Search(ctx context.Context, req *models.QueryRequest) ([]models.Record, error) {
	start := time.Now()
	records, _, err := e.retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	e.record(ctx, ModeQuery, req, len(records), time.Since(start))
	return records, nil
}

// Summarize retrieves the nearest records and asks the chat model to answer
// the question from their descriptions.
func (e *Engine) Summarize(ctx context.Context, req *models.QueryRequest) (string, error) {
	start := time.Now()
	records, _, err := e.retrieve(ctx, req)
	if err != nil {
		return "", err
	}

	var contextBlock strings.Builder
	for _, rec := range records {
		contextBlock.WriteString(rec.Description())
		contextBlock.WriteString("\n\n")
	}
	prompt := fmt.Sprintf(promptTemplate, contextBlock.String(), req.Query)

	answer, err := e.generator.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}
	e.record(ctx, ModeSummary, req, len(records), time.Since(start))
	return answer, nil
}

// retrieve validates the request, embeds the query, and maps index matches
// back to records. Matches pointing outside the store are dropped rather than
// guessed at.
func (e *Engine) retrieve(ctx context.Context, req *models.QueryRequest) ([]models.Record, []vector.Match, error) {
	if err := req.Validate(e.cfg.DefaultTopK, e.cfg.MaxTopK); err != nil {
		return nil, nil, err
	}

	queryVector, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to embed query: %w", err)
	}
	matches, err := e.index.Search(ctx, queryVector, req.TopK)
	if err != nil {
		return nil, nil, fmt.Errorf("vector search failed: %w", err)
	}

	records := make([]models.Record, 0, len(matches))
	kept := make([]vector.Match, 0, len(matches))
	for _, m := range matches {
		rec, ok := e.meta.At(m.Position)
		if !ok {
			continue
		}
		records = append(records, rec)
		kept = append(kept, m)
	}
	return records, kept, nil
}

func (e *Engine) record(ctx context.Context, mode string, req *models.QueryRequest, results int, elapsed time.Duration) {
	if e.logger != nil {
		e.logger.Debug("query answered",
			zap.String("mode", mode),
			zap.Int("top_k", req.TopK),
			zap.Int("results", results),
			zap.Duration("elapsed", elapsed))
	}
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordQuery(ctx, mode, req.Query, req.TopK, results, elapsed); err != nil && e.logger != nil {
		e.logger.Warn("failed to record query history", zap.Error(err))
	}
}
