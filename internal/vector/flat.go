// Package vector provides a pure-Go flat index used when FAISS is not compiled in.
package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FlatIndex is an exact brute-force index held in memory. It mirrors FAISS
// IndexFlatL2 semantics: distances are squared L2 and results come back in
// ascending distance order.
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{
		dimensions: dimensions,
		vectors:    make([][]float32, 0),
	}, nil
}

// Type returns the index type identifier.
func (x *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Add appends vectors. Positions are assigned in order, continuing from Size().
// The batch is validated up front so a dimension error appends nothing.
func (x *FlatIndex) Add(ctx context.Context, vectors [][]float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, v := range vectors {
		if len(v) != x.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(v), x.dimensions)
		}
	}
	for _, v := range vectors {
		vec := make([]float32, x.dimensions)
		copy(vec, v)
		x.vectors = append(x.vectors, vec)
	}
	return nil
}

// Search returns the k nearest vectors by squared L2 distance, ascending.
// k larger than the current size is clamped; an empty index returns no matches.
func (x *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if len(query) != x.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), x.dimensions)
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if k <= 0 || len(x.vectors) == 0 {
		return nil, nil
	}
	matches := make([]Match, len(x.vectors))
	for i, vec := range x.vectors {
		matches[i] = Match{Position: i, Distance: SquaredL2(query, vec)}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if k > len(matches) {
		k = len(matches)
	}
	out := make([]Match, k)
	copy(out, matches[:k])
	return out, nil
}

// Save persists the index to path. Directory is created if needed.
// Format: dimensions (4), count (4), then count*dimensions float32 values,
// all little-endian.
func (x *FlatIndex) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(x.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(x.vectors))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, vec := range x.vectors {
		if _, err := f.Write(float32SliceToBytes(vec)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents.
// Dimensions must match. If the file does not exist, no error is returned
// and the index is unchanged.
func (x *FlatIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != x.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, x.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	vectors := make([][]float32, 0, n)
	buf := make([]byte, x.dimensions*4)
	for i := uint32(0); i < n; i++ {
		if _, err := io.ReadFull(f, buf); err != nil {
			return fmt.Errorf("read vector %d: %w", i, err)
		}
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	x.mu.Lock()
	x.vectors = vectors
	x.mu.Unlock()
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// Size returns the number of vectors in the index.
func (x *FlatIndex) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// Dimensions returns the fixed vector dimensionality.
func (x *FlatIndex) Dimensions() int {
	return x.dimensions
}

// Close is a no-op for FlatIndex.
func (x *FlatIndex) Close() error {
	return nil
}
