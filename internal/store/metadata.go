// Package store holds the in-memory equipment database and its staging pool.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/yosgi/GeoCopilot/internal/models"
)

var bucketEquipment = []byte("equipment")

// Metadata is the ordered in-memory record store. Position i corresponds to
// vector i in the index; order is the only cross-reference, so records are
// append-only and never reordered.
type Metadata struct {
	mu      sync.RWMutex
	records []models.Record
}

// NewMetadata creates an empty store.
func NewMetadata() *Metadata {
	return &Metadata{records: make([]models.Record, 0)}
}

// Append adds records to the end of the store in the given order.
func (m *Metadata) Append(records []models.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
}

// Len returns the number of stored records.
func (m *Metadata) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// At returns the record at position i, or false when i is out of range.
func (m *Metadata) At(i int) (models.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || i >= len(m.records) {
		return nil, false
	}
	return m.records[i], true
}

// Snapshot returns a copy of the record list in storage order.
func (m *Metadata) Snapshot() []models.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Record, len(m.records))
	copy(out, m.records)
	return out
}

// IDSet returns the element IDs currently stored.
func (m *Metadata) IDSet() map[string]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make(map[string]struct{}, len(m.records))
	for _, rec := range m.records {
		ids[rec.ElementID()] = struct{}{}
	}
	return ids
}

// Save writes a full snapshot to a bbolt file at path, replacing any
// previous contents. Records are keyed by big-endian position so iteration
// order equals storage order.
func (m *Metadata) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return fmt.Errorf("open metadata db: %w", err)
	}
	defer db.Close()

	err = db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketEquipment) != nil {
			if err := tx.DeleteBucket(bucketEquipment); err != nil {
				return fmt.Errorf("reset bucket: %w", err)
			}
		}
		b, err := tx.CreateBucket(bucketEquipment)
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		for i, rec := range m.records {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal record %d: %w", i, err)
			}
			if err := b.Put(positionKey(i), data); err != nil {
				return fmt.Errorf("put record %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write metadata snapshot: %w", err)
	}
	return nil
}

// Load replaces the in-memory contents with the snapshot at path.
// If the file does not exist, no error is returned and the store is unchanged.
func (m *Metadata) Load(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("open metadata db: %w", err)
	}
	defer db.Close()

	var records []models.Record
	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEquipment)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var rec models.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal record %x: %w", k, err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("read metadata snapshot: %w", err)
	}

	m.mu.Lock()
	m.records = records
	m.mu.Unlock()
	return nil
}

func positionKey(i int) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(i))
	return k[:]
}
