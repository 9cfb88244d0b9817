// Package cli provides CLI output helpers for GeoCopilot.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/yosgi/GeoCopilot/internal/models"
	"github.com/yosgi/GeoCopilot/pkg/utils"
)

// QueryOutputFormat is the format for query result output.
type QueryOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText QueryOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON QueryOutputFormat = "json"
)

// WriteQueryResults writes matched records to w in the given format, nearest
// match first. Use OutputJSON for parseable output consumable by other apps.
func WriteQueryResults(w io.Writer, records []models.Record, format QueryOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	default:
		writeQueryResultsText(w, records)
		return nil
	}
}

func writeQueryResultsText(w io.Writer, records []models.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No matches.")
		return
	}
	fmt.Fprintf(w, "\nFound %d match(es), nearest first\n\n", len(records))
	for i, rec := range records {
		writeOneRecord(w, i+1, rec)
	}
}

func writeOneRecord(w io.Writer, rank int, rec models.Record) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Element: %s | System: %s\n", rank, rec.ElementID(), rec.System())
	if name := rec.Field("name"); name != "" {
		fmt.Fprintf(w, "Name: %s\n", name)
	}
	fmt.Fprintf(w, "\n%s\n", utils.Truncate(rec.Description(), 200))
	fmt.Fprintln(w)
}
