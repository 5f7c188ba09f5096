package clustering

import (
	"math/rand"

	"github.com/coder/hnsw"
)

// Above this many vectors, edge candidates come from an HNSW index instead
// of the full pairwise scan.
const cwBruteForceLimit = 1024

// cwCandidates caps the approximate neighbor candidates fetched per node.
const cwCandidates = 64

// chineseWhispers builds a similarity graph with edges below the distance
// threshold (weight 1/(1+dist)) and iteratively propagates the
// highest-weighted neighbor label through each node until the labeling is
// stable or the iteration bound is hit. The node visit order is shuffled
// with a seeded generator, so a configured run is reproducible.
func chineseWhispers(vectors [][]float32, params map[string]any) ([]int, error) {
	threshold, err := floatParam(params, "threshold", 0.6)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmChineseWhispers, Err: err}
	}
	maxIterations, err := intParam(params, "max_iterations", 20)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmChineseWhispers, Err: err}
	}
	seed, err := intParam(params, "seed", 0)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmChineseWhispers, Err: err}
	}
	metric, err := stringParam(params, "metric", MetricEuclidean)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmChineseWhispers, Err: err}
	}
	if threshold <= 0 {
		return nil, failf(AlgorithmChineseWhispers, "threshold must be positive, got %g", threshold)
	}
	if maxIterations < 1 {
		return nil, failf(AlgorithmChineseWhispers, "max_iterations must be at least 1, got %d", maxIterations)
	}
	if err := validMetric(metric); err != nil {
		return nil, &Error{Algorithm: AlgorithmChineseWhispers, Err: err}
	}

	n := len(vectors)
	type edge struct {
		to     int
		weight float64
	}
	adjacency := make([][]edge, n)
	addEdge := func(i, j int, d float64) {
		w := 1.0 / (1.0 + d)
		adjacency[i] = append(adjacency[i], edge{to: j, weight: w})
		adjacency[j] = append(adjacency[j], edge{to: i, weight: w})
	}

	if n <= cwBruteForceLimit {
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if d := distance(vectors[i], vectors[j], metric); d < threshold {
					addEdge(i, j, d)
				}
			}
		}
	} else {
		// Approximate candidates from an HNSW index; the threshold
		// filter keeps only genuine edges.
		g := hnsw.NewGraph[int]()
		g.M = 16
		g.Ml = 1.0 / 16.0
		if metric == MetricCosine {
			g.Distance = hnsw.CosineDistance
		} else {
			g.Distance = hnsw.EuclideanDistance
		}
		for i, v := range vectors {
			g.Add(hnsw.MakeNode(i, v))
		}
		k := cwCandidates
		if k > n {
			k = n
		}
		for i, v := range vectors {
			for _, nb := range g.Search(v, k) {
				j := nb.Key
				if j <= i {
					continue // each undirected edge added once
				}
				if d := distance(vectors[i], vectors[j], metric); d < threshold {
					addEdge(i, j, d)
				}
			}
		}
	}

	rng := rand.New(rand.NewSource(int64(seed)))
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}
	order := rng.Perm(n)

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })
		for _, i := range order {
			if len(adjacency[i]) == 0 {
				continue
			}
			votes := make(map[int]float64, len(adjacency[i]))
			for _, e := range adjacency[i] {
				votes[labels[e.to]] += e.weight
			}
			best, bestWeight := labels[i], votes[labels[i]]
			for l, w := range votes {
				if w > bestWeight || (w == bestWeight && l < best) {
					best, bestWeight = l, w
				}
			}
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	// Isolated nodes never received evidence of a group.
	for i := range labels {
		if len(adjacency[i]) == 0 {
			labels[i] = Noise
		}
	}

	// One label across the whole graph means the threshold failed to
	// discriminate anything; treat the run as uninformative.
	if len(sortedLabels(labels)) == 1 && n > 1 {
		hasNoise := false
		for _, l := range labels {
			if l == Noise {
				hasNoise = true
				break
			}
		}
		if !hasNoise {
			for i := range labels {
				labels[i] = Noise
			}
		}
	}

	return labels, nil
}
