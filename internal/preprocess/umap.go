package preprocess

import (
	"math"
	"math/rand"
	"sort"

	"github.com/kanta-app/cluster-faces/internal/store"
)

// reduceUMAP embeds the vectors into a lower-dimensional space with a
// compact UMAP: exact kNN graph, fuzzy simplicial set weights, and a seeded
// SGD layout. The seed fixes every random choice so a configured run is
// reproducible.
func reduceUMAP(vectors [][]float32, p UMAPParams) ([][]float32, error) {
	n := len(vectors)
	k := p.Neighbors
	rng := rand.New(rand.NewSource(p.Seed))

	neighbors, dists := knnGraph(vectors, k, p.Metric)
	edges := fuzzySimplicialSet(neighbors, dists, n, k)
	a, b := fitABParams(p.MinDist)

	// Principal-component initialization keeps the layout deterministic
	// up to the seeded SGD noise.
	init, err := reducePCA(vectors, p.Components, false)
	if err != nil {
		return nil, err
	}
	embedding := scaleInit(init, 10.0)

	optimizeLayout(embedding, edges, p.Epochs, a, b, rng)

	return embedding, nil
}

type umapEdge struct {
	from, to int
	weight   float64
}

// knnGraph computes the exact k nearest neighbors of every vector.
// Quadratic, which is fine at per-event face counts.
func knnGraph(vectors [][]float32, k int, metric string) ([][]int, [][]float64) {
	n := len(vectors)
	neighbors := make([][]int, n)
	dists := make([][]float64, n)

	type cand struct {
		idx  int
		dist float64
	}

	for i := 0; i < n; i++ {
		cands := make([]cand, 0, n-1)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			cands = append(cands, cand{j, vectorDistance(vectors[i], vectors[j], metric)})
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].dist != cands[b].dist {
				return cands[a].dist < cands[b].dist
			}
			return cands[a].idx < cands[b].idx
		})
		if len(cands) > k {
			cands = cands[:k]
		}
		neighbors[i] = make([]int, len(cands))
		dists[i] = make([]float64, len(cands))
		for c, cd := range cands {
			neighbors[i][c] = cd.idx
			dists[i][c] = cd.dist
		}
	}
	return neighbors, dists
}

func vectorDistance(a, b []float32, metric string) float64 {
	if metric == "cosine" {
		return store.CosineDistance(a, b)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// fuzzySimplicialSet converts kNN distances into symmetric membership
// weights. Per point, rho is the distance to the nearest neighbor and
// sigma is binary-searched so the smoothed neighborhood has effective size
// log2(k).
func fuzzySimplicialSet(neighbors [][]int, dists [][]float64, n, k int) []umapEdge {
	target := math.Log2(float64(k))
	weights := make(map[[2]int]float64, n*k)

	for i := range neighbors {
		if len(neighbors[i]) == 0 {
			continue
		}
		rho := dists[i][0]
		sigma := smoothKNNDist(dists[i], rho, target)
		for c, j := range neighbors[i] {
			d := dists[i][c] - rho
			if d < 0 {
				d = 0
			}
			w := 1.0
			if sigma > 0 {
				w = math.Exp(-d / sigma)
			}
			weights[[2]int{i, j}] = w
		}
	}

	// Symmetrize: w_ij + w_ji - w_ij * w_ji.
	edges := make([]umapEdge, 0, len(weights))
	seen := make(map[[2]int]bool, len(weights))
	for key, w := range weights {
		i, j := key[0], key[1]
		lo, hi := i, j
		if lo > hi {
			lo, hi = hi, lo
		}
		if seen[[2]int{lo, hi}] {
			continue
		}
		seen[[2]int{lo, hi}] = true
		wT := weights[[2]int{j, i}]
		edges = append(edges, umapEdge{from: lo, to: hi, weight: w + wT - w*wT})
	}
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].from != edges[b].from {
			return edges[a].from < edges[b].from
		}
		return edges[a].to < edges[b].to
	})
	return edges
}

func smoothKNNDist(dists []float64, rho, target float64) float64 {
	lo, hi, mid := 0.0, math.Inf(1), 1.0
	for iter := 0; iter < 64; iter++ {
		var sum float64
		for _, d := range dists {
			dd := d - rho
			if dd <= 0 {
				sum++
				continue
			}
			sum += math.Exp(-dd / mid)
		}
		if math.Abs(sum-target) < 1e-5 {
			break
		}
		if sum > target {
			hi = mid
			mid = (lo + hi) / 2
		} else {
			lo = mid
			if math.IsInf(hi, 1) {
				mid *= 2
			} else {
				mid = (lo + hi) / 2
			}
		}
	}
	return mid
}

// fitABParams fits the a/b curve parameters to the min_dist membership
// target by coarse grid refinement. Matches the reference curve closely
// enough for layout purposes and avoids a nonlinear solver dependency.
func fitABParams(minDist float64) (float64, float64) {
	target := func(d float64) float64 {
		if d <= minDist {
			return 1.0
		}
		return math.Exp(-(d - minDist))
	}

	bestA, bestB, bestErr := 1.0, 1.0, math.Inf(1)
	a := 0.5
	for ; a <= 3.0; a += 0.05 {
		for b := 0.5; b <= 2.0; b += 0.05 {
			var sum float64
			for d := 0.05; d <= 3.0; d += 0.05 {
				curve := 1.0 / (1.0 + a*math.Pow(d, 2*b))
				diff := curve - target(d)
				sum += diff * diff
			}
			if sum < bestErr {
				bestErr = sum
				bestA, bestB = a, b
			}
		}
	}
	return bestA, bestB
}

func scaleInit(init [][]float32, maxAbs float64) [][]float32 {
	var peak float64
	for _, row := range init {
		for _, x := range row {
			if v := math.Abs(float64(x)); v > peak {
				peak = v
			}
		}
	}
	out := make([][]float32, len(init))
	for i, row := range init {
		w := make([]float32, len(row))
		if peak > 0 {
			for j, x := range row {
				w[j] = float32(float64(x) / peak * maxAbs)
			}
		}
		out[i] = w
	}
	return out
}

const (
	umapNegativeSamples = 5
	umapGradClip        = 4.0
)

// optimizeLayout runs attraction/repulsion SGD over the fuzzy graph edges,
// modifying the embedding in place.
func optimizeLayout(embedding [][]float32, edges []umapEdge, epochs int, a, b float64, rng *rand.Rand) {
	n := len(embedding)
	if n == 0 || len(edges) == 0 {
		return
	}

	for epoch := 0; epoch < epochs; epoch++ {
		alpha := 1.0 - float64(epoch)/float64(epochs)
		for _, e := range edges {
			// Strong edges move every epoch, weak edges
			// proportionally less often.
			if rng.Float64() > e.weight {
				continue
			}
			applyAttraction(embedding[e.from], embedding[e.to], a, b, alpha)
			for s := 0; s < umapNegativeSamples; s++ {
				other := rng.Intn(n)
				if other == e.from || other == e.to {
					continue
				}
				applyRepulsion(embedding[e.from], embedding[other], a, b, alpha)
			}
		}
	}
}

func applyAttraction(x, y []float32, a, b, alpha float64) {
	d2 := sqDist(x, y)
	if d2 <= 0 {
		return
	}
	coeff := -2.0 * a * b * math.Pow(d2, b-1) / (1.0 + a*math.Pow(d2, b))
	moveApart(x, y, coeff, alpha)
}

func applyRepulsion(x, y []float32, a, b, alpha float64) {
	d2 := sqDist(x, y)
	coeff := 2.0 * b / ((0.001 + d2) * (1.0 + a*math.Pow(d2, b)))
	moveApart(x, y, coeff, alpha)
}

func moveApart(x, y []float32, coeff, alpha float64) {
	for j := range x {
		grad := coeff * (float64(x[j]) - float64(y[j]))
		if grad > umapGradClip {
			grad = umapGradClip
		} else if grad < -umapGradClip {
			grad = -umapGradClip
		}
		x[j] += float32(grad * alpha)
	}
}

func sqDist(x, y []float32) float64 {
	var sum float64
	for j := range x {
		d := float64(x[j]) - float64(y[j])
		sum += d * d
	}
	return sum
}
