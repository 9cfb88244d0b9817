// Package export serializes the equipment database into downloadable artifacts.
package export

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/yosgi/GeoCopilot/internal/config"
	"github.com/yosgi/GeoCopilot/internal/models"
	"github.com/yosgi/GeoCopilot/internal/store"
	"github.com/yosgi/GeoCopilot/internal/vector"
)

// Artifact filenames under the export directory.
const (
	DatabaseJSONName = "complete_database.json"
	BundleName       = "three_file_export.zip"
)

// ErrEmptyDatabase is returned when an export is requested on an empty store.
var ErrEmptyDatabase = errors.New("database is empty")

// databaseSnapshot is the layout of the database JSON artifact.
type databaseSnapshot struct {
	Metadata  snapshotMetadata `json:"metadata"`
	Equipment []models.Record  `json:"equipment_database"`
}

type snapshotMetadata struct {
	ExportTime      string             `json:"export_time"`
	DatabaseVersion string             `json:"database_version"`
	TotalEquipment  int                `json:"total_equipment"`
	FAISSIndexSize  int                `json:"faiss_index_size"`
	Statistics      snapshotStatistics `json:"statistics"`
}

type snapshotStatistics struct {
	EquipmentBySystem   map[string]int `json:"equipment_by_system"`
	EquipmentByCategory map[string]int `json:"equipment_by_category"`
	DataConsistency     bool           `json:"data_consistency"`
}

// Exporter writes the database JSON and the bundle archive. The JSON reflects
// live in-memory state; the raw snapshot files bundled alongside reflect the
// last save, and the two may lag each other between saves.
type Exporter struct {
	meta    *store.Metadata
	index   vector.Index
	storage *config.StorageConfig
	logger  *zap.Logger // optional; when set, logs export progress
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithLogger sets a logger for export progress and warnings.
func WithLogger(l *zap.Logger) ExporterOption {
	return func(e *Exporter) { e.logger = l }
}

// NewExporter creates an exporter over the given store and index.
func NewExporter(meta *store.Metadata, index vector.Index, storage *config.StorageConfig, opts ...ExporterOption) *Exporter {
	e := &Exporter{meta: meta, index: index, storage: storage}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WriteDatabaseJSON writes the full database snapshot to
// {export_dir}/complete_database.json and returns its path.
// Returns ErrEmptyDatabase when no records are stored.
func (e *Exporter) WriteDatabaseJSON() (string, error) {
	records := e.meta.Snapshot()
	if len(records) == 0 {
		return "", ErrEmptyDatabase
	}
	if err := os.MkdirAll(e.storage.ExportDir, 0755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	bySystem := make(map[string]int)
	byCategory := make(map[string]int)
	for _, rec := range records {
		bySystem[rec.System()]++
		byCategory[rec.Subcategory()]++
	}

	indexSize := e.index.Size()
	snapshot := databaseSnapshot{
		Metadata: snapshotMetadata{
			ExportTime:      time.Now().Format(time.RFC3339),
			DatabaseVersion: "1.0",
			TotalEquipment:  len(records),
			FAISSIndexSize:  indexSize,
			Statistics: snapshotStatistics{
				EquipmentBySystem:   bySystem,
				EquipmentByCategory: byCategory,
				DataConsistency:     indexSize == len(records),
			},
		},
		Equipment: records,
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal database snapshot: %w", err)
	}
	path := filepath.Join(e.storage.ExportDir, DatabaseJSONName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write database snapshot: %w", err)
	}
	if e.logger != nil {
		e.logger.Info("database JSON exported", zap.String("path", path), zap.Int("records", len(records)))
	}
	return path, nil
}

// WriteBundle writes {export_dir}/three_file_export.zip containing a freshly
// generated database JSON plus the index and metadata snapshot files when
// they exist on disk. A missing snapshot file is logged and skipped rather
// than aborting the bundle. Returns ErrEmptyDatabase when no records are
// stored.
func (e *Exporter) WriteBundle() (string, error) {
	jsonPath, err := e.WriteDatabaseJSON()
	if err != nil {
		return "", err
	}

	zipPath := filepath.Join(e.storage.ExportDir, BundleName)
	f, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("create bundle: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	if err := addFileToZip(zw, jsonPath, DatabaseJSONName); err != nil {
		zw.Close()
		return "", fmt.Errorf("bundle database JSON: %w", err)
	}
	e.addSnapshotIfPresent(zw, e.storage.IndexPath, "index snapshot")
	e.addSnapshotIfPresent(zw, e.storage.MetadataPath, "metadata snapshot")
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize bundle: %w", err)
	}
	if e.logger != nil {
		e.logger.Info("bundle exported", zap.String("path", zipPath))
	}
	return zipPath, nil
}

func (e *Exporter) addSnapshotIfPresent(zw *zip.Writer, path, label string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		if e.logger != nil {
			e.logger.Warn("snapshot file missing, skipping from bundle",
				zap.String("file", label), zap.String("path", path))
		}
		return
	}
	if err := addFileToZip(zw, path, filepath.Base(path)); err != nil && e.logger != nil {
		e.logger.Warn("failed to bundle snapshot file",
			zap.String("file", label), zap.String("path", path), zap.Error(err))
	}
}

func addFileToZip(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}
