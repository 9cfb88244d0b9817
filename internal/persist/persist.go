// Package persist runs the background snapshot and pool sweep loops.
package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yosgi/GeoCopilot/internal/store"
	"github.com/yosgi/GeoCopilot/internal/vector"
)

// Saver periodically snapshots the vector index and metadata store to disk,
// overwriting the previous snapshots. A failed tick is logged and the loop
// keeps running.
type Saver struct {
	index     vector.Index
	meta      *store.Metadata
	indexPath string
	metaPath  string
	interval  time.Duration
	logger    *zap.Logger // optional; when set, logs save outcomes

	mu       sync.Mutex
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// SaverOption configures a Saver.
type SaverOption func(*Saver)

// WithSaverLogger sets a logger for save outcomes.
func WithSaverLogger(l *zap.Logger) SaverOption {
	return func(s *Saver) { s.logger = l }
}

// NewSaver creates a saver that writes the index to indexPath and the
// metadata store to metaPath every interval.
func NewSaver(index vector.Index, meta *store.Metadata, indexPath, metaPath string, interval time.Duration, opts ...SaverOption) *Saver {
	s := &Saver{
		index:     index,
		meta:      meta,
		indexPath: indexPath,
		metaPath:  metaPath,
		interval:  interval,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the save loop. It runs until ctx is cancelled or Stop is called.
func (s *Saver) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	go s.run(ctx)
}

func (s *Saver) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-s.done:
			return
		case <-ticker.C:
			vectors, records, err := s.SaveNow()
			if err != nil {
				if s.logger != nil {
					s.logger.Error("periodic save failed", zap.Error(err))
				}
				continue
			}
			if s.logger != nil {
				s.logger.Debug("snapshots saved",
					zap.Int("vectors", vectors),
					zap.Int("records", records))
			}
		}
	}
}

// SaveNow writes both snapshots immediately and returns the vector and
// record counts after the save.
func (s *Saver) SaveNow() (vectors, records int, err error) {
	if err := s.index.Save(s.indexPath); err != nil {
		return 0, 0, fmt.Errorf("save index: %w", err)
	}
	if err := s.meta.Save(s.metaPath); err != nil {
		return 0, 0, fmt.Errorf("save metadata: %w", err)
	}
	return s.index.Size(), s.meta.Len(), nil
}

// Stop stops the save loop. Safe to call more than once.
func (s *Saver) Stop() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.done) })
}

// Sweeper periodically drains the staging pool once it has been idle long
// enough. Draining only reclaims memory; nothing downstream consumes the
// drained records.
type Sweeper struct {
	pool     *store.Pool
	interval time.Duration
	idleFor  time.Duration
	logger   *zap.Logger // optional; when set, logs drains

	mu       sync.Mutex
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweeperLogger sets a logger for drain events.
func WithSweeperLogger(l *zap.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = l }
}

// NewSweeper creates a sweeper that checks the pool every interval and
// drains it after idleFor without appends.
func NewSweeper(pool *store.Pool, interval, idleFor time.Duration, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		pool:     pool,
		interval: interval,
		idleFor:  idleFor,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the sweep loop. It runs until ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.pool.DrainIfIdle(s.idleFor); n > 0 && s.logger != nil {
				s.logger.Info("staging pool drained", zap.Int("records", n))
			}
		}
	}
}

// Stop stops the sweep loop. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.done) })
}
