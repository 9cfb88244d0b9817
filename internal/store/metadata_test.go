package store

import (
	"path/filepath"
	"testing"

	"github.com/yosgi/GeoCopilot/internal/models"
)

func TestMetadata_AppendAt(t *testing.T) {
	m := NewMetadata()
	m.Append([]models.Record{
		{"element": "A1", "name": "Pump"},
		{"element": "A2", "name": "Valve"},
	})
	if m.Len() != 2 {
		t.Errorf("Len=%d, want 2", m.Len())
	}

	rec, ok := m.At(1)
	if !ok || rec.ElementID() != "A2" {
		t.Errorf("At(1) = %v, %v", rec, ok)
	}
	if _, ok := m.At(2); ok {
		t.Error("At(2) should be out of range")
	}
	if _, ok := m.At(-1); ok {
		t.Error("At(-1) should be out of range")
	}
}

func TestMetadata_IDSet(t *testing.T) {
	m := NewMetadata()
	m.Append([]models.Record{
		{"element": "A1"},
		{"element": float64(7)},
		{"name": "no id"},
	})
	ids := m.IDSet()
	for _, want := range []string{"A1", "7", ""} {
		if _, ok := ids[want]; !ok {
			t.Errorf("IDSet missing %q", want)
		}
	}
}

func TestMetadata_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "metadata.db")

	m := NewMetadata()
	m.Append([]models.Record{
		{"element": "A1", "name": "Pump", "custom": map[string]any{"nested": true}},
		{"element": "A2", "name": "Valve"},
		{"element": "A3", "name": "Fan"},
	})
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded := NewMetadata()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 3 {
		t.Fatalf("after Load Len=%d, want 3", loaded.Len())
	}
	// order must survive the round trip
	for i, want := range []string{"A1", "A2", "A3"} {
		rec, ok := loaded.At(i)
		if !ok || rec.ElementID() != want {
			t.Errorf("position %d = %v", i, rec)
		}
	}
	rec, _ := loaded.At(0)
	if _, ok := rec["custom"]; !ok {
		t.Error("arbitrary field lost in round trip")
	}
}

func TestMetadata_SaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.db")

	m := NewMetadata()
	m.Append([]models.Record{{"element": "A1"}, {"element": "A2"}, {"element": "A3"}})
	if err := m.Save(path); err != nil {
		t.Fatal(err)
	}

	smaller := NewMetadata()
	smaller.Append([]models.Record{{"element": "B1"}})
	if err := smaller.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded := NewMetadata()
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Len() != 1 {
		t.Errorf("overwritten snapshot should have 1 record, got %d", loaded.Len())
	}
	rec, _ := loaded.At(0)
	if rec.ElementID() != "B1" {
		t.Errorf("At(0) = %v", rec)
	}
}

func TestMetadata_LoadMissingFile(t *testing.T) {
	m := NewMetadata()
	if err := m.Load(filepath.Join(t.TempDir(), "absent.db")); err != nil {
		t.Errorf("Load missing file should not error: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Load missing file should leave store empty: Len=%d", m.Len())
	}
}

func TestMetadata_SaveEmptyPath(t *testing.T) {
	m := NewMetadata()
	if err := m.Save(""); err != nil {
		t.Errorf("Save empty path should be no-op: %v", err)
	}
}

func TestMetadata_Snapshot(t *testing.T) {
	m := NewMetadata()
	m.Append([]models.Record{{"element": "A1"}})
	snap := m.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Snapshot len=%d", len(snap))
	}
	// appending after the snapshot must not grow the copy
	m.Append([]models.Record{{"element": "A2"}})
	if len(snap) != 1 {
		t.Errorf("snapshot grew after append: %d", len(snap))
	}
}
