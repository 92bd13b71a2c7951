package index

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDot(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}

	if got := Dot(a, b); !almostEqual(got, 32) {
		t.Errorf("Dot = %v, want 32", got)
	}
}

func TestNorm(t *testing.T) {
	if got := Norm([]float32{3, 4}); !almostEqual(got, 5) {
		t.Errorf("Norm = %v, want 5", got)
	}
	if got := Norm([]float32{0, 0}); got != 0 {
		t.Errorf("Norm of zero vector = %v, want 0", got)
	}
}

func TestNormalize_UnitLength(t *testing.T) {
	v := Normalize([]float32{3, 4})

	if got := Norm(v); !almostEqual(got, 1) {
		t.Errorf("norm after Normalize = %v, want 1", got)
	}
	if !almostEqual(float64(v[0]), 0.6) || !almostEqual(float64(v[1]), 0.8) {
		t.Errorf("Normalize = %v, want [0.6 0.8]", v)
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	v := Normalize([]float32{0, 0, 0})

	for i, x := range v {
		if x != 0 {
			t.Errorf("component %d = %v, want 0", i, x)
		}
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := []float32{3, 4}
	_ = Normalize(in)

	if in[0] != 3 || in[1] != 4 {
		t.Errorf("input mutated: %v", in)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"scale invariant", []float32{1, 1}, []float32{5, 5}, 1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); !almostEqual(got, tt.want) {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}
