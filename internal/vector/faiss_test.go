//go:build faiss && cgo
// +build faiss,cgo

package vector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFAISSIndex_AddSearch(t *testing.T) {
	idx, err := NewFAISSIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.9, 0.1, 0},
	}
	if err := idx.Add(ctx, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d, want 3", idx.Size())
	}

	matches, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Position != 0 {
		t.Errorf("nearest should be position 0, got %d", matches[0].Position)
	}
	if matches[1].Position != 2 {
		t.Errorf("second match should be position 2, got %d", matches[1].Position)
	}
}

func TestFAISSIndex_SearchEmpty(t *testing.T) {
	idx, err := NewFAISSIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	matches, err := idx.Search(context.Background(), []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("expected empty matches, got %d", len(matches))
	}
}

func TestFAISSIndex_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "equipment.index")

	idx, err := NewFAISSIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	if err := idx.Add(ctx, vecs); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("index file not created: %v", err)
	}

	idx2, err := NewFAISSIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx2.Close()
	if err := idx2.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if idx2.Size() != 3 {
		t.Errorf("after Load size=%d, want 3", idx2.Size())
	}
	matches, err := idx2.Search(ctx, []float32{0, 0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Position != 2 {
		t.Errorf("Search after Load: got %+v", matches)
	}
}

func TestFAISSIndex_LoadMissingFile(t *testing.T) {
	idx, err := NewFAISSIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	if err := idx.Load("/nonexistent/path/index"); err != nil {
		t.Errorf("Load missing file should not error: %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("Load missing file should leave index empty: size=%d", idx.Size())
	}
}

func TestFAISSIndex_SaveEmptyPath(t *testing.T) {
	idx, err := NewFAISSIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	if err := idx.Save(""); err != nil {
		t.Errorf("Save empty path should be no-op: %v", err)
	}
}

func TestFAISSIndex_DimensionMismatch(t *testing.T) {
	idx, err := NewFAISSIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	if err := idx.Add(ctx, [][]float32{{1, 0}}); err == nil {
		t.Error("expected error for dimension mismatch on Add")
	}

	_ = idx.Add(ctx, [][]float32{{1, 0, 0}})
	if _, err := idx.Search(ctx, []float32{1, 0}, 1); err == nil {
		t.Error("expected error for dimension mismatch on Search")
	}
}

func TestFAISSIndex_InvalidDimension(t *testing.T) {
	if _, err := NewFAISSIndex(0); err == nil {
		t.Error("expected error for zero dimension")
	}
	if _, err := NewFAISSIndex(-1); err == nil {
		t.Error("expected error for negative dimension")
	}
}

func TestFAISSIndex_AddEmpty(t *testing.T) {
	idx, err := NewFAISSIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	if err := idx.Add(context.Background(), [][]float32{}); err != nil {
		t.Errorf("Add empty should succeed: %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("Size should be 0, got %d", idx.Size())
	}
}

func TestFAISSIndex_Type(t *testing.T) {
	idx, err := NewFAISSIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	if got := idx.Type(); got != "faiss" {
		t.Errorf("Type() = %q, want %q", got, "faiss")
	}
}
