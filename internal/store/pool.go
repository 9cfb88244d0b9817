package store

import (
	"sync"
	"time"

	"github.com/yosgi/GeoCopilot/internal/models"
)

// Pool is the staging buffer of recently inserted records. A sweeper drains
// it after a quiet period; draining reclaims memory and has no other effect.
type Pool struct {
	mu         sync.Mutex
	records    []models.Record
	lastAppend time.Time
}

// NewPool creates an empty staging pool.
func NewPool() *Pool {
	return &Pool{}
}

// Add stages records and stamps the append time.
func (p *Pool) Add(records []models.Record) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, records...)
	p.lastAppend = time.Now()
}

// Size returns the number of staged records.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// DrainIfIdle clears the pool and returns the drained count when it is
// non-empty and no append happened within idleFor. Otherwise it returns 0
// and leaves the pool as is.
func (p *Pool) DrainIfIdle(idleFor time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.records) == 0 || time.Since(p.lastAppend) <= idleFor {
		return 0
	}
	n := len(p.records)
	p.records = nil
	return n
}
