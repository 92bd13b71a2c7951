package index

import "math/rand"

// kmeans runs spherical Lloyd iterations over unit-length vectors: assign each
// vector to the centroid with the highest dot product, recompute centroids as the
// renormalized mean, repeat until the largest centroid movement drops below
// epsilon or maxIter is hit. The result is a local optimum, not a global one.
//
// The rng seed makes seeding and tie-breaking deterministic so an unchanged
// corpus clusters identically across rebuilds.
func kmeans(vectors [][]float32, k, maxIter int, epsilon float64, seed int64) ([][]float32, []int) {
	rng := rand.New(rand.NewSource(seed))

	centroids := seedCentroids(vectors, k, rng)
	assignments := make([]int, len(vectors))

	for iter := 0; iter < maxIter; iter++ {
		for i, v := range vectors {
			assignments[i] = nearestCentroid(v, centroids)
		}

		moved := recomputeCentroids(vectors, assignments, centroids)
		if moved < epsilon {
			break
		}
	}

	// Final assignment against the converged centroids.
	for i, v := range vectors {
		assignments[i] = nearestCentroid(v, centroids)
	}

	return centroids, assignments
}

// seedCentroids picks k initial centroids k-means++ style: the first uniformly
// at random, each subsequent one with probability proportional to its cosine
// distance from the nearest already-chosen centroid.
func seedCentroids(vectors [][]float32, k int, rng *rand.Rand) [][]float32 {
	centroids := make([][]float32, 0, k)
	first := rng.Intn(len(vectors))
	centroids = append(centroids, cloneVector(vectors[first]))

	dists := make([]float64, len(vectors))
	for len(centroids) < k {
		var total float64
		for i, v := range vectors {
			d := cosineDistance(v, centroids)
			dists[i] = d
			total += d
		}
		if total == 0 {
			// All remaining vectors coincide with a centroid; pick uniformly.
			centroids = append(centroids, cloneVector(vectors[rng.Intn(len(vectors))]))
			continue
		}

		target := rng.Float64() * total
		chosen := len(vectors) - 1
		var acc float64
		for i, d := range dists {
			acc += d
			if acc >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, cloneVector(vectors[chosen]))
	}
	return centroids
}

// cosineDistance returns 1 - max dot against the chosen centroids, floored at zero.
func cosineDistance(v []float32, centroids [][]float32) float64 {
	best := -1.0
	for _, c := range centroids {
		if d := Dot(v, c); d > best {
			best = d
		}
	}
	if d := 1 - best; d > 0 {
		return d
	}
	return 0
}

func nearestCentroid(v []float32, centroids [][]float32) int {
	best, bestScore := 0, Dot(v, centroids[0])
	for c := 1; c < len(centroids); c++ {
		if score := Dot(v, centroids[c]); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

// recomputeCentroids replaces each centroid with the renormalized mean of its
// members and returns the largest cosine movement across centroids. Clusters
// that lost all members keep their previous centroid.
func recomputeCentroids(vectors [][]float32, assignments []int, centroids [][]float32) float64 {
	dim := len(vectors[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, v := range vectors {
		c := assignments[i]
		counts[c]++
		for j, x := range v {
			sums[c][j] += float64(x)
		}
	}

	var maxMoved float64
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		next := make([]float32, dim)
		for j := range next {
			next[j] = float32(sums[c][j] / float64(counts[c]))
		}
		next = Normalize(next)

		if moved := 1 - Dot(centroids[c], next); moved > maxMoved {
			maxMoved = moved
		}
		centroids[c] = next
	}
	return maxMoved
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
