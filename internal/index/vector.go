// Package index implements an inverted-file (IVF) vector index: documents are
// partitioned into clusters around centroids, and search probes only the nprobe
// nearest clusters before scoring candidates exactly.
package index

import "math"

// Dot returns the dot product of two equal-length vectors.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the Euclidean norm of v.
func Norm(v []float32) float64 {
	return math.Sqrt(Dot(v, v))
}

// Normalize returns a unit-length copy of v. The zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// Cosine returns the cosine similarity of a and b.
func Cosine(a, b []float32) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}
