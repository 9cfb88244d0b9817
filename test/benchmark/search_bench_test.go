package benchmark

import (
	"context"
	"testing"

	"github.com/yosgi/GeoCopilot/internal/embedding"
	"github.com/yosgi/GeoCopilot/internal/models"
	"github.com/yosgi/GeoCopilot/internal/vector"
)

// Production dimensionality; search cost scales linearly with it.
const benchDimensions = 1536

func BenchmarkFlatIndexSearch(b *testing.B) {
	idx, err := vector.NewFlatIndex(benchDimensions)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	vecs := make([][]float32, 1000)
	for i := range vecs {
		vecs[i] = make([]float32, benchDimensions)
		vecs[i][i%benchDimensions] = float32(i) / 1000
	}
	if err := idx.Add(ctx, vecs); err != nil {
		b.Fatal(err)
	}
	query := make([]float32, benchDimensions)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(ctx, query, 50)
	}
}

func BenchmarkMockEmbedder_Embed(b *testing.B) {
	e := embedding.NewMockEmbedder(benchDimensions)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "centrifugal pump on the cooling water loop")
	}
}

func BenchmarkRecordDescription(b *testing.B) {
	rec := models.Record{
		"element":                 "EQ-001",
		"name":                    "Circulating Pump Unit 01",
		"system":                  "cooling water system",
		"equipment_concept":       "centrifugal pump",
		"function":                "circulates process fluid through the loop",
		"applicable_codes":        []string{"ASME B31.1", "API 610"},
		"maintenance_strategy":    "preventive maintenance on a fixed calendar",
		"inspection_requirements": []string{"visual inspection", "vibration analysis"},
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rec.Description()
	}
}

func BenchmarkFlatIndexAdd(b *testing.B) {
	ctx := context.Background()
	batch := make([][]float32, 100)
	for i := range batch {
		batch[i] = make([]float32, benchDimensions)
		batch[i][0] = float32(i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		idx, err := vector.NewFlatIndex(benchDimensions)
		if err != nil {
			b.Fatal(err)
		}
		b.StartTimer()
		if err := idx.Add(ctx, batch); err != nil {
			b.Fatal(err)
		}
	}
}
