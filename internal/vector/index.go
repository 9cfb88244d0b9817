// Package vector provides the nearest-neighbor index backing equipment search.
package vector

import "context"

// Index is an append-only vector index. Vectors are addressed by insertion
// position; position i corresponds to the i-th metadata record.
type Index interface {
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Match, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Close() error
}

// Match is a single nearest-neighbor hit.
type Match struct {
	Position int
	Distance float32 // squared L2, smaller is closer
}
