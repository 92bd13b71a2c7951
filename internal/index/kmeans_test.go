package index

import (
	"math"
	"math/rand"
	"testing"
)

// clusteredVectors generates unit vectors tightly grouped around k well-separated
// directions in a high-dimensional space.
func clusteredVectors(t *testing.T, k, perCluster, dim int, seed int64) ([][]float32, []int) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	vectors := make([][]float32, 0, k*perCluster)
	labels := make([]int, 0, k*perCluster)
	for c := 0; c < k; c++ {
		for i := 0; i < perCluster; i++ {
			v := make([]float32, dim)
			// Axis-aligned base direction plus small noise keeps clusters separable.
			v[c] = 1
			for j := range v {
				v[j] += float32(rng.NormFloat64() * 0.05)
			}
			vectors = append(vectors, Normalize(v))
			labels = append(labels, c)
		}
	}
	return vectors, labels
}

func TestKMeans_RecoversSeparatedClusters(t *testing.T) {
	vectors, labels := clusteredVectors(t, 3, 20, 8, 1)

	centroids, assignments := kmeans(vectors, 3, 25, 1e-4, 42)

	if len(centroids) != 3 {
		t.Fatalf("got %d centroids, want 3", len(centroids))
	}
	if len(assignments) != len(vectors) {
		t.Fatalf("got %d assignments, want %d", len(assignments), len(vectors))
	}

	// All members of one true cluster must land in the same learned cluster.
	seen := make(map[int]int) // true label -> learned cluster
	for i, a := range assignments {
		if a < 0 || a >= 3 {
			t.Fatalf("assignment %d out of range: %d", i, a)
		}
		label := labels[i]
		if prev, ok := seen[label]; ok {
			if prev != a {
				t.Errorf("vector %d (label %d) assigned to cluster %d, others got %d", i, label, a, prev)
			}
		} else {
			seen[label] = a
		}
	}
}

func TestKMeans_CentroidsAreUnit(t *testing.T) {
	vectors, _ := clusteredVectors(t, 2, 15, 6, 2)

	centroids, _ := kmeans(vectors, 2, 25, 1e-4, 7)

	for i, c := range centroids {
		if n := Norm(c); math.Abs(n-1) > 1e-6 {
			t.Errorf("centroid %d norm = %v, want 1", i, n)
		}
	}
}

func TestKMeans_Deterministic(t *testing.T) {
	vectors, _ := clusteredVectors(t, 4, 10, 8, 3)

	c1, a1 := kmeans(vectors, 4, 25, 1e-4, 99)
	c2, a2 := kmeans(vectors, 4, 25, 1e-4, 99)

	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatalf("assignment %d differs across runs: %d vs %d", i, a1[i], a2[i])
		}
	}
	for i := range c1 {
		for j := range c1[i] {
			if c1[i][j] != c2[i][j] {
				t.Fatalf("centroid %d component %d differs across runs", i, j)
			}
		}
	}
}

func TestKMeans_DuplicateVectors(t *testing.T) {
	// All vectors identical: seeding must not loop forever and every vector
	// lands somewhere valid.
	v := Normalize([]float32{1, 2, 3})
	vectors := [][]float32{v, v, v, v, v, v}

	centroids, assignments := kmeans(vectors, 2, 25, 1e-4, 5)

	if len(centroids) != 2 {
		t.Fatalf("got %d centroids, want 2", len(centroids))
	}
	for i, a := range assignments {
		if a < 0 || a >= 2 {
			t.Errorf("assignment %d out of range: %d", i, a)
		}
	}
}
