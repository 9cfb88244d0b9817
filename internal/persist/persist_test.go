package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yosgi/GeoCopilot/internal/models"
	"github.com/yosgi/GeoCopilot/internal/store"
	"github.com/yosgi/GeoCopilot/internal/vector"
)

func newSaverFixture(t *testing.T) (*vector.FlatIndex, *store.Metadata, string, string) {
	t.Helper()
	dir := t.TempDir()
	idx, err := vector.NewFlatIndex(4)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(context.Background(), [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}); err != nil {
		t.Fatal(err)
	}
	meta := store.NewMetadata()
	meta.Append([]models.Record{{"element": "A1"}, {"element": "A2"}})
	return idx, meta, filepath.Join(dir, "equipment.index"), filepath.Join(dir, "metadata.db")
}

func TestSaver_SaveNow(t *testing.T) {
	idx, meta, indexPath, metaPath := newSaverFixture(t)
	s := NewSaver(idx, meta, indexPath, metaPath, time.Minute)

	vectors, records, err := s.SaveNow()
	if err != nil {
		t.Fatal(err)
	}
	if vectors != 2 || records != 2 {
		t.Errorf("counts = %d/%d, want 2/2", vectors, records)
	}
	for _, path := range []string{indexPath, metaPath} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("snapshot %s not written: %v", path, err)
		}
	}
}

func TestSaver_SaveNowIndexError(t *testing.T) {
	idx, meta, _, metaPath := newSaverFixture(t)
	// A directory at the index path makes the index save fail.
	badPath := t.TempDir()
	s := NewSaver(idx, meta, badPath, metaPath, time.Minute)

	if _, _, err := s.SaveNow(); err == nil {
		t.Fatal("expected error when index path is a directory")
	}
	if _, err := os.Stat(metaPath); !os.IsNotExist(err) {
		t.Error("metadata should not be written when the index save fails")
	}
}

func TestSaver_periodicSave(t *testing.T) {
	idx, meta, indexPath, metaPath := newSaverFixture(t)
	s := NewSaver(idx, meta, indexPath, metaPath, 20*time.Millisecond)
	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err1 := os.Stat(indexPath); err1 == nil {
			if _, err2 := os.Stat(metaPath); err2 == nil {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("snapshots were not written by the periodic saver")
}

func TestSaver_stopIdempotent(t *testing.T) {
	idx, meta, indexPath, metaPath := newSaverFixture(t)
	s := NewSaver(idx, meta, indexPath, metaPath, time.Minute)
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}

func TestSweeper_drainsIdlePool(t *testing.T) {
	pool := store.NewPool()
	pool.Add([]models.Record{{"element": "A1"}})
	s := NewSweeper(pool, 10*time.Millisecond, 0)
	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if pool.Size() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("pool not drained, size = %d", pool.Size())
}

func TestSweeper_leavesActivePool(t *testing.T) {
	pool := store.NewPool()
	pool.Add([]models.Record{{"element": "A1"}})
	s := NewSweeper(pool, 10*time.Millisecond, time.Hour)
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(100 * time.Millisecond)
	if pool.Size() != 1 {
		t.Errorf("pool drained too early, size = %d", pool.Size())
	}
}

func TestSweeper_stopsOnContextCancel(t *testing.T) {
	pool := store.NewPool()
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSweeper(pool, 10*time.Millisecond, 0)
	s.Start(ctx)
	cancel()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case <-s.done:
			return
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatal("sweeper did not stop after context cancel")
}
