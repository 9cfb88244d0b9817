// Package models defines core data structures for equipment records and queries.
package models

import (
	"fmt"
	"strings"
)

// Record is one equipment entry. Records arrive as loosely structured JSON
// objects and every field must survive storage and export untouched, so the
// type is an open map rather than a fixed struct.
type Record map[string]any

// ElementID returns the string form of the "element" field, the identity
// used for duplicate detection. Records without the field all map to the
// empty ID and therefore collapse into one.
func (r Record) ElementID() string {
	v, ok := r["element"]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Field returns the string form of an arbitrary field, or "" when absent.
func (r Record) Field(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// StringList returns a list-valued field as strings. JSON decoding yields
// []any, so both []any and []string are accepted.
func (r Record) StringList(key string) []string {
	switch v := r[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}

// System returns the "system" field, or "Unknown" when absent.
func (r Record) System() string {
	if _, ok := r["system"]; !ok {
		return "Unknown"
	}
	return r.Field("system")
}

// Subcategory returns the "subcategory" field, or "Unknown" when absent.
func (r Record) Subcategory() string {
	if _, ok := r["subcategory"]; !ok {
		return "Unknown"
	}
	return r.Field("subcategory")
}

// Description renders the canonical equipment text sent to the embedding
// provider and used as generation context. The wording is fixed: changing it
// shifts every new embedding relative to vectors already in the index.
func (r Record) Description() string {
	return fmt.Sprintf(`Equipment %s (element ID %s) is part of the %s.
It is a %s with function: %s.
It adheres to codes: %s.
Maintenance strategy: %s.
Inspection includes: %s.`,
		r.Field("name"),
		r.ElementID(),
		r.Field("system"),
		r.Field("equipment_concept"),
		r.Field("function"),
		strings.Join(r.StringList("applicable_codes"), ", "),
		r.Field("maintenance_strategy"),
		strings.Join(r.StringList("inspection_requirements"), ", "),
	)
}
