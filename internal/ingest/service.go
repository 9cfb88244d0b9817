// Package ingest provides batch insertion of equipment records into the
// vector index and metadata store.
package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yosgi/GeoCopilot/internal/embedding"
	"github.com/yosgi/GeoCopilot/internal/models"
	"github.com/yosgi/GeoCopilot/internal/store"
	"github.com/yosgi/GeoCopilot/internal/vector"
)

// Insert outcome statuses.
const (
	StatusOK        = "ok"
	StatusDuplicate = "duplicate"
)

// MessageAllDuplicates is returned when a batch contains no new element IDs.
const MessageAllDuplicates = "All elements already exist."

// Result is the outcome of a batch insert.
type Result struct {
	Status    string
	Message   string
	BatchID   string
	Received  int
	Inserted  int
	TotalInDB int
	PoolSize  int
}

// Recorder receives insert outcomes for the activity log.
type Recorder interface {
	RecordIngest(ctx context.Context, batchID, status, source string, received, inserted, total int) error
}

type sourceKey struct{}

// WithSource tags ctx with the origin of a batch, e.g. "import" for the
// drop-directory importer. Untagged contexts report SourceHTTP.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the batch origin tagged on ctx.
func SourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return SourceHTTP
}

// Batch origins recorded in the activity log.
const (
	SourceHTTP   = "http"
	SourceImport = "import"
)

// Service inserts equipment batches. Inserts are serialized so vector
// positions and record positions always advance together.
type Service struct {
	mu       sync.Mutex
	index    vector.Index
	meta     *store.Metadata
	pool     *store.Pool
	embedder embedding.Embedder
	recorder Recorder
	logger   *zap.Logger // optional; when set, logs insert outcomes
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets a logger for insert outcome logging.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithRecorder sets an activity log recorder. Recording failures are logged
// and never fail the insert.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// NewService creates an ingest service with the given dependencies.
func NewService(index vector.Index, meta *store.Metadata, pool *store.Pool, embedder embedding.Embedder, opts ...ServiceOption) *Service {
	s := &Service{
		index:    index,
		meta:     meta,
		pool:     pool,
		embedder: embedder,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InsertBatch deduplicates, embeds, and appends a batch of records.
// Within a batch, the first occurrence of an element ID fixes its position and
// the last occurrence supplies the record; IDs already stored are skipped.
// When nothing new remains the result has StatusDuplicate and no state changes.
func (s *Service) InsertBatch(ctx context.Context, records []models.Record) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batchID := uuid.New().String()
	fresh := s.dedupe(records)
	if len(fresh) == 0 {
		res := &Result{
			Status:    StatusDuplicate,
			Message:   MessageAllDuplicates,
			BatchID:   batchID,
			Received:  len(records),
			Inserted:  0,
			TotalInDB: s.meta.Len(),
			PoolSize:  s.pool.Size(),
		}
		s.record(ctx, res)
		return res, nil
	}

	texts := make([]string, len(fresh))
	for i, rec := range fresh {
		texts[i] = rec.Description()
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(fresh) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d records", len(vectors), len(fresh))
	}
	if err := s.index.Add(ctx, vectors); err != nil {
		return nil, fmt.Errorf("failed to index vectors: %w", err)
	}
	s.meta.Append(fresh)
	s.pool.Add(fresh)

	res := &Result{
		Status:    StatusOK,
		BatchID:   batchID,
		Received:  len(records),
		Inserted:  len(fresh),
		TotalInDB: s.meta.Len(),
		PoolSize:  s.pool.Size(),
	}
	if s.logger != nil {
		s.logger.Info("batch inserted",
			zap.String("batch_id", res.BatchID),
			zap.Int("received", res.Received),
			zap.Int("inserted", res.Inserted),
			zap.Int("total", res.TotalInDB))
	}
	s.record(ctx, res)
	return res, nil
}

// dedupe keeps the first-occurrence order of each element ID in the batch,
// letting the last record for an ID win, then drops IDs already stored.
// Records without an element ID share the empty ID and collapse to one entry.
func (s *Service) dedupe(records []models.Record) []models.Record {
	order := make([]string, 0, len(records))
	byID := make(map[string]models.Record, len(records))
	for _, rec := range records {
		id := rec.ElementID()
		if _, seen := byID[id]; !seen {
			order = append(order, id)
		}
		byID[id] = rec
	}
	existing := s.meta.IDSet()
	fresh := make([]models.Record, 0, len(order))
	for _, id := range order {
		if _, ok := existing[id]; ok {
			continue
		}
		fresh = append(fresh, byID[id])
	}
	return fresh
}

func (s *Service) record(ctx context.Context, res *Result) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.RecordIngest(ctx, res.BatchID, res.Status, SourceFrom(ctx), res.Received, res.Inserted, res.TotalInDB)
	if err != nil && s.logger != nil {
		s.logger.Warn("failed to record insert history", zap.Error(err))
	}
}
