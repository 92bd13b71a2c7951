package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/answerdesk/supportrag/internal/domain"
)

// Build parameter defaults.
const (
	DefaultMaxClusters   = 256
	DefaultMaxIterations = 25
	DefaultEpsilon       = 1e-4
)

// BuildParams tunes clustering. Zero values fall back to defaults.
type BuildParams struct {
	MaxClusters   int     // ceiling on the sqrt(N) cluster-count heuristic
	MaxIterations int     // Lloyd iteration cap
	Epsilon       float64 // convergence threshold on centroid movement
	Seed          int64   // rng seed for deterministic seeding
}

func (p BuildParams) withDefaults() BuildParams {
	if p.MaxClusters <= 0 {
		p.MaxClusters = DefaultMaxClusters
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = DefaultMaxIterations
	}
	if p.Epsilon <= 0 {
		p.Epsilon = DefaultEpsilon
	}
	return p
}

// Index is an immutable IVF structure over one corpus generation. Vectors are
// stored unit-normalized, so cosine similarity reduces to a dot product.
type Index struct {
	dim       int
	centroids [][]float32
	lists     [][]int // cluster -> member vector indices
	vectors   [][]float32
}

// Hit is one scored candidate from a search.
type Hit struct {
	Index int
	Score float64
}

// Build clusters the corpus vectors and produces an immutable index. The cluster
// count follows floor(sqrt(N)), clamped to [1, MaxClusters]; corpora too small to
// cluster meaningfully (N < 2C) degrade to a single cluster.
func Build(vectors [][]float32, params BuildParams) (*Index, error) {
	if len(vectors) == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	params = params.withDefaults()

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("zero-dimension vectors: %w", domain.ErrVectorDimMismatch)
	}
	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d: %w",
				i, len(v), dim, domain.ErrVectorDimMismatch)
		}
		normalized[i] = Normalize(v)
	}

	c := clusterCount(len(vectors), params.MaxClusters)

	var centroids [][]float32
	var assignments []int
	if c == 1 {
		centroids = [][]float32{meanCentroid(normalized)}
		assignments = make([]int, len(normalized))
	} else {
		centroids, assignments = kmeans(normalized, c, params.MaxIterations, params.Epsilon, params.Seed)
	}

	lists := make([][]int, len(centroids))
	for i, a := range assignments {
		lists[a] = append(lists[a], i)
	}

	return &Index{
		dim:       dim,
		centroids: centroids,
		lists:     lists,
		vectors:   normalized,
	}, nil
}

// Reconstruct rebuilds an index from persisted artifacts without re-clustering.
// All inputs must already be normalized and mutually consistent.
func Reconstruct(dim int, centroids [][]float32, lists [][]int, vectors [][]float32) (*Index, error) {
	if len(vectors) == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	if len(centroids) == 0 || len(lists) != len(centroids) {
		return nil, fmt.Errorf("%w: %d centroids, %d inverted lists",
			domain.ErrVersionMismatch, len(centroids), len(lists))
	}
	for _, c := range centroids {
		if len(c) != dim {
			return nil, fmt.Errorf("centroid dimension %d, want %d: %w",
				len(c), dim, domain.ErrVersionMismatch)
		}
	}
	var members int
	for _, l := range lists {
		for _, i := range l {
			if i < 0 || i >= len(vectors) {
				return nil, fmt.Errorf("%w: inverted list references vector %d of %d",
					domain.ErrVersionMismatch, i, len(vectors))
			}
		}
		members += len(l)
	}
	if members != len(vectors) {
		return nil, fmt.Errorf("%w: inverted lists cover %d of %d vectors",
			domain.ErrVersionMismatch, members, len(vectors))
	}
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector dimension %d, want %d: %w",
				len(v), dim, domain.ErrVersionMismatch)
		}
	}
	return &Index{dim: dim, centroids: centroids, lists: lists, vectors: vectors}, nil
}

// Search probes the nprobe nearest clusters, scores their members exactly and
// returns up to topK hits in descending similarity, ties broken by lower vector
// index. With nprobe < ClusterCount a true nearest neighbor in an unprobed
// cluster is missed; that recall/latency trade-off is the point of the index.
func (ix *Index) Search(query []float32, topK, nprobe int) ([]Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension %d, want %d: %w",
			len(query), ix.dim, domain.ErrVectorDimMismatch)
	}
	if topK <= 0 {
		return nil, nil
	}
	if nprobe < 1 {
		nprobe = 1
	}
	if nprobe > len(ix.centroids) {
		nprobe = len(ix.centroids)
	}

	q := Normalize(query)

	probed := ix.nearestClusters(q, nprobe)

	var hits []Hit
	for _, c := range probed {
		for _, i := range ix.lists[c] {
			hits = append(hits, Hit{Index: i, Score: Dot(q, ix.vectors[i])})
		}
	}

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Index < hits[b].Index
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Dimension returns the vector dimension.
func (ix *Index) Dimension() int { return ix.dim }

// ClusterCount returns the number of clusters.
func (ix *Index) ClusterCount() int { return len(ix.centroids) }

// Len returns the number of indexed vectors.
func (ix *Index) Len() int { return len(ix.vectors) }

// Centroids returns the centroid vectors. Callers must not mutate them.
func (ix *Index) Centroids() [][]float32 { return ix.centroids }

// Lists returns the inverted lists. Callers must not mutate them.
func (ix *Index) Lists() [][]int { return ix.lists }

// Vectors returns the normalized document vectors. Callers must not mutate them.
func (ix *Index) Vectors() [][]float32 { return ix.vectors }

// nearestClusters returns the nprobe cluster ids closest to q by dot product.
func (ix *Index) nearestClusters(q []float32, nprobe int) []int {
	type ranked struct {
		cluster int
		score   float64
	}
	scores := make([]ranked, len(ix.centroids))
	for c, centroid := range ix.centroids {
		scores[c] = ranked{cluster: c, score: Dot(q, centroid)}
	}
	sort.Slice(scores, func(a, b int) bool {
		if scores[a].score != scores[b].score {
			return scores[a].score > scores[b].score
		}
		return scores[a].cluster < scores[b].cluster
	})

	out := make([]int, nprobe)
	for i := 0; i < nprobe; i++ {
		out[i] = scores[i].cluster
	}
	return out
}

// clusterCount applies the sqrt(N) heuristic with a floor of 1 and the
// configured ceiling, degrading to one cluster when N < 2C.
func clusterCount(n, maxClusters int) int {
	c := int(math.Floor(math.Sqrt(float64(n))))
	if c < 1 {
		c = 1
	}
	if c > maxClusters {
		c = maxClusters
	}
	if n < 2*c {
		return 1
	}
	return c
}

// meanCentroid returns the renormalized mean of all vectors.
func meanCentroid(vectors [][]float32) []float32 {
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for _, v := range vectors {
		for j, x := range v {
			sum[j] += float64(x)
		}
	}
	mean := make([]float32, dim)
	for j := range mean {
		mean[j] = float32(sum[j] / float64(len(vectors)))
	}
	return Normalize(mean)
}
