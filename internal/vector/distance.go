// Package vector provides distance helpers for raw (unnormalized) vectors.
package vector

// SquaredL2 returns the squared L2 distance between two equal-length vectors.
// This is the raw value FAISS IndexFlatL2 reports; no square root is taken.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
