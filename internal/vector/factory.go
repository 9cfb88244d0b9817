// Package vector provides vector index implementations and a factory for creating them.
package vector

import "fmt"

// IndexType selects the vector index implementation.
type IndexType string

const (
	// IndexTypeFlat uses pure-Go brute-force search. Always available, exact.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeFAISS uses the FAISS library through its C API.
	// Requires FAISS installed and the build tag -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// NewIndex creates a vector index of the specified type.
// Supported types: "flat" (default), "faiss".
func NewIndex(indexType string, dimensions int) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeFlat, "":
		return NewFlatIndex(dimensions)
	case IndexTypeFAISS:
		return NewFAISSIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, faiss)", indexType)
	}
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
// This is determined by the build tag -tags=faiss.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
