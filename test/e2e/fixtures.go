// Package e2e provides end-to-end tests; this file builds batch files for the
// import drop directory.
package e2e

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/yosgi/GeoCopilot/internal/models"
)

// WriteBatchFile writes records as an indented JSON array to dir/name, the
// format the importer expects to find in the drop directory. Returns the
// full path of the written file.
func WriteBatchFile(dir, name string, records []models.Record) (string, error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

// WriteCorruptBatchFile writes a file that is not a JSON array of records.
// The importer must leave such files in place.
func WriteCorruptBatchFile(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(`{"not": "an array"`), 0644); err != nil {
		return "", err
	}
	return path, nil
}
