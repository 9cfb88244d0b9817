//go:build faiss && cgo
// +build faiss,cgo

// Package vector provides a FAISS-backed index for production scale.
package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"
)

// FAISSIndex wraps a FAISS IndexFlatL2 through the C API. FAISS assigns
// sequential labels on add, so labels are the positions and no side mapping
// is kept.
type FAISSIndex struct {
	idx        *C.FaissIndex
	dimensions int
	mu         sync.RWMutex
}

// NewFAISSIndex creates an exact L2 index with the given dimension.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	var flat *C.FaissIndexFlatL2
	ret := C.faiss_IndexFlatL2_new_with(&flat, C.idx_t(dimensions))
	if ret != 0 {
		return nil, fmt.Errorf("create FAISS index: %s", faissLastError())
	}

	return &FAISSIndex{
		idx:        (*C.FaissIndex)(unsafe.Pointer(flat)),
		dimensions: dimensions,
	}, nil
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Add appends vectors in order, continuing from Size().
func (f *FAISSIndex) Add(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Flatten into one contiguous array for FAISS
	n := len(vectors)
	flat := make([]float32, n*f.dimensions)
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), f.dimensions)
		}
		copy(flat[i*f.dimensions:(i+1)*f.dimensions], vec)
	}

	ret := C.faiss_Index_add(
		f.idx,
		C.idx_t(n),
		(*C.float)(unsafe.Pointer(&flat[0])),
	)
	if ret != 0 {
		return fmt.Errorf("add vectors to FAISS index: %s", faissLastError())
	}
	return nil
}

// Search returns the k nearest vectors by squared L2 distance, ascending.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}
	ntotal := int(C.faiss_Index_ntotal(f.idx))
	if ntotal == 0 {
		return nil, nil
	}
	if k > ntotal {
		k = ntotal
	}

	distances := make([]float32, k)
	labels := make([]int64, k)

	ret := C.faiss_Index_search(
		f.idx,
		1, // one query vector
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	matches := make([]Match, 0, k)
	for i := 0; i < k; i++ {
		if labels[i] < 0 {
			continue // FAISS pads with -1 when k exceeds results
		}
		matches = append(matches, Match{Position: int(labels[i]), Distance: distances[i]})
	}
	return matches, nil
}

// Save persists the index to path using FAISS's native serialization.
func (f *FAISSIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	ret := C.faiss_write_index_fname(f.idx, cPath)
	if ret != 0 {
		return fmt.Errorf("save FAISS index: %s", faissLastError())
	}
	return nil
}

// Load replaces the index with the file at path. Dimensions must match.
// If the file does not exist, no error is returned and the index is unchanged.
func (f *FAISSIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var loaded *C.FaissIndex
	ret := C.faiss_read_index_fname(cPath, 0, &loaded)
	if ret != 0 {
		return fmt.Errorf("load FAISS index: %s", faissLastError())
	}

	d := int(C.faiss_Index_d(loaded))
	if d != f.dimensions {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", d, f.dimensions)
	}

	if f.idx != nil {
		C.faiss_Index_free(f.idx)
	}
	f.idx = loaded
	return nil
}

// Size returns the number of stored vectors.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.idx == nil {
		return 0
	}
	return int(C.faiss_Index_ntotal(f.idx))
}

// Dimensions returns the fixed vector dimensionality.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.idx != nil {
		C.faiss_Index_free(f.idx)
		f.idx = nil
	}
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
