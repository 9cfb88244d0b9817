package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yosgi/GeoCopilot/internal/config"
	"github.com/yosgi/GeoCopilot/internal/models"
	"github.com/yosgi/GeoCopilot/internal/store"
	"github.com/yosgi/GeoCopilot/internal/vector"
)

func newTestExporter(t *testing.T) (*Exporter, *store.Metadata, *vector.FlatIndex, *config.StorageConfig) {
	t.Helper()
	dir := t.TempDir()
	idx, err := vector.NewFlatIndex(4)
	if err != nil {
		t.Fatal(err)
	}
	meta := store.NewMetadata()
	storage := &config.StorageConfig{
		IndexPath:    filepath.Join(dir, "equipment.index"),
		MetadataPath: filepath.Join(dir, "metadata.db"),
		ExportDir:    filepath.Join(dir, "exports"),
	}
	return NewExporter(meta, idx, storage), meta, idx, storage
}

func seedExporter(t *testing.T, meta *store.Metadata, idx *vector.FlatIndex, records []models.Record) {
	t.Helper()
	vecs := make([][]float32, len(records))
	for i := range records {
		vecs[i] = []float32{float32(i), 0, 0, 1}
	}
	if err := idx.Add(context.Background(), vecs); err != nil {
		t.Fatal(err)
	}
	meta.Append(records)
}

func TestWriteDatabaseJSON_emptyStore(t *testing.T) {
	e, _, _, _ := newTestExporter(t)
	if _, err := e.WriteDatabaseJSON(); !errors.Is(err, ErrEmptyDatabase) {
		t.Fatalf("expected ErrEmptyDatabase, got %v", err)
	}
}

func TestWriteDatabaseJSON(t *testing.T) {
	e, meta, idx, storage := newTestExporter(t)
	seedExporter(t, meta, idx, []models.Record{
		{"element": "A1", "name": "Pump", "system": "cooling", "subcategory": "rotating"},
		{"element": "A2", "name": "Valve", "system": "cooling"},
	})

	path, err := e.WriteDatabaseJSON()
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(storage.ExportDir, "complete_database.json") {
		t.Errorf("artifact path = %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var snapshot struct {
		Metadata struct {
			ExportTime      string `json:"export_time"`
			DatabaseVersion string `json:"database_version"`
			TotalEquipment  int    `json:"total_equipment"`
			FAISSIndexSize  int    `json:"faiss_index_size"`
			Statistics      struct {
				EquipmentBySystem   map[string]int `json:"equipment_by_system"`
				EquipmentByCategory map[string]int `json:"equipment_by_category"`
				DataConsistency     bool           `json:"data_consistency"`
			} `json:"statistics"`
		} `json:"metadata"`
		Equipment []models.Record `json:"equipment_database"`
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		t.Fatal(err)
	}
	if snapshot.Metadata.DatabaseVersion != "1.0" {
		t.Errorf("database_version = %s", snapshot.Metadata.DatabaseVersion)
	}
	if snapshot.Metadata.ExportTime == "" {
		t.Error("export_time should be set")
	}
	if snapshot.Metadata.TotalEquipment != 2 || snapshot.Metadata.FAISSIndexSize != 2 {
		t.Errorf("counts: total=%d index=%d, want 2/2", snapshot.Metadata.TotalEquipment, snapshot.Metadata.FAISSIndexSize)
	}
	if !snapshot.Metadata.Statistics.DataConsistency {
		t.Error("data_consistency should be true when counts match")
	}
	if snapshot.Metadata.Statistics.EquipmentBySystem["cooling"] != 2 {
		t.Errorf("by_system = %v", snapshot.Metadata.Statistics.EquipmentBySystem)
	}
	if snapshot.Metadata.Statistics.EquipmentByCategory["rotating"] != 1 || snapshot.Metadata.Statistics.EquipmentByCategory["Unknown"] != 1 {
		t.Errorf("by_category = %v", snapshot.Metadata.Statistics.EquipmentByCategory)
	}
	if len(snapshot.Equipment) != 2 || snapshot.Equipment[0].ElementID() != "A1" {
		t.Errorf("equipment_database order lost: %v", snapshot.Equipment)
	}
}

func TestWriteDatabaseJSON_inconsistentCounts(t *testing.T) {
	e, meta, idx, _ := newTestExporter(t)
	seedExporter(t, meta, idx, []models.Record{{"element": "A1"}})
	// One extra vector with no matching record.
	if err := idx.Add(context.Background(), [][]float32{{9, 9, 9, 9}}); err != nil {
		t.Fatal(err)
	}

	path, err := e.WriteDatabaseJSON()
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var snapshot struct {
		Metadata struct {
			Statistics struct {
				DataConsistency bool `json:"data_consistency"`
			} `json:"statistics"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		t.Fatal(err)
	}
	if snapshot.Metadata.Statistics.DataConsistency {
		t.Error("data_consistency should be false when counts differ")
	}
}

func TestWriteBundle(t *testing.T) {
	e, meta, idx, storage := newTestExporter(t)
	seedExporter(t, meta, idx, []models.Record{{"element": "A1", "name": "Pump"}})
	if err := idx.Save(storage.IndexPath); err != nil {
		t.Fatal(err)
	}
	if err := meta.Save(storage.MetadataPath); err != nil {
		t.Fatal(err)
	}

	path, err := e.WriteBundle()
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"complete_database.json", "equipment.index", "metadata.db"} {
		if !names[want] {
			t.Errorf("bundle missing %s, has %v", want, names)
		}
	}
}

func TestWriteBundle_missingSnapshotsSkipped(t *testing.T) {
	e, meta, idx, _ := newTestExporter(t)
	seedExporter(t, meta, idx, []models.Record{{"element": "A1"}})

	path, err := e.WriteBundle()
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	if len(zr.File) != 1 || zr.File[0].Name != "complete_database.json" {
		t.Errorf("bundle should contain only the database JSON, got %d entries", len(zr.File))
	}
}

func TestWriteBundle_emptyStore(t *testing.T) {
	e, _, _, _ := newTestExporter(t)
	if _, err := e.WriteBundle(); !errors.Is(err, ErrEmptyDatabase) {
		t.Fatalf("expected ErrEmptyDatabase, got %v", err)
	}
}
