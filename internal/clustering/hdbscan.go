package clustering

import (
	"math"
	"sort"
)

// hdbscan implements robust single linkage: core distances define a mutual
// reachability metric, a minimum spanning tree over it gives the density
// hierarchy, and clusters are the connected components after cutting edges
// above a selection threshold. The threshold is cluster_selection_epsilon
// when configured, otherwise the largest gap in the sorted MST edge
// weights.
func hdbscan(vectors [][]float32, params map[string]any) ([]int, error) {
	minClusterSize, err := intParam(params, "min_cluster_size", 5)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmHDBSCAN, Err: err}
	}
	minSamples, err := intParam(params, "min_samples", minClusterSize)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmHDBSCAN, Err: err}
	}
	selectionEps, err := floatParam(params, "cluster_selection_epsilon", 0)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmHDBSCAN, Err: err}
	}
	metric, err := stringParam(params, "metric", MetricEuclidean)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmHDBSCAN, Err: err}
	}
	if minClusterSize < 2 {
		return nil, failf(AlgorithmHDBSCAN, "min_cluster_size must be at least 2, got %d", minClusterSize)
	}
	if minSamples < 1 {
		return nil, failf(AlgorithmHDBSCAN, "min_samples must be at least 1, got %d", minSamples)
	}
	if selectionEps < 0 {
		return nil, failf(AlgorithmHDBSCAN, "cluster_selection_epsilon must not be negative, got %g", selectionEps)
	}
	if err := validMetric(metric); err != nil {
		return nil, &Error{Algorithm: AlgorithmHDBSCAN, Err: err}
	}

	n := len(vectors)
	dist := distanceMatrix(vectors, metric)
	if minSamples > n-1 {
		minSamples = n - 1
	}

	// Core distance: distance to the minSamples-th nearest neighbor.
	coreDist := make([]float64, n)
	for i := 0; i < n; i++ {
		ds := make([]float64, 0, n-1)
		for j := 0; j < n; j++ {
			if i != j {
				ds = append(ds, dist[i][j])
			}
		}
		sort.Float64s(ds)
		coreDist[i] = ds[minSamples-1]
	}

	mutualReach := func(i, j int) float64 {
		return math.Max(dist[i][j], math.Max(coreDist[i], coreDist[j]))
	}

	// Prim's MST over the mutual reachability graph.
	type mstEdge struct {
		from, to int
		weight   float64
	}
	inTree := make([]bool, n)
	best := make([]float64, n)
	bestFrom := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}
	inTree[0] = true
	for j := 1; j < n; j++ {
		best[j] = mutualReach(0, j)
		bestFrom[j] = 0
	}

	edges := make([]mstEdge, 0, n-1)
	for len(edges) < n-1 {
		next, nextW := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if !inTree[j] && best[j] < nextW {
				next, nextW = j, best[j]
			}
		}
		if next < 0 {
			break
		}
		inTree[next] = true
		edges = append(edges, mstEdge{from: bestFrom[next], to: next, weight: nextW})
		for j := 0; j < n; j++ {
			if !inTree[j] {
				if w := mutualReach(next, j); w < best[j] {
					best[j] = w
					bestFrom[j] = next
				}
			}
		}
	}

	sort.Slice(edges, func(a, b int) bool { return edges[a].weight < edges[b].weight })

	threshold := selectionEps
	if threshold == 0 && len(edges) > 1 {
		// Cut at the largest weight gap: the jump from within-cluster
		// density to between-cluster density.
		gapAt, gap := len(edges), 0.0
		for i := 1; i < len(edges); i++ {
			if g := edges[i].weight - edges[i-1].weight; g > gap {
				gap = g
				gapAt = i
			}
		}
		if gapAt < len(edges) {
			threshold = edges[gapAt].weight
		} else {
			threshold = math.Inf(1)
		}
	}

	// Connected components over edges strictly below the threshold.
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	for _, e := range edges {
		if e.weight < threshold {
			parent[find(e.from)] = find(e.to)
		}
	}

	labels := make([]int, n)
	compLabel := make(map[int]int)
	next := 0
	for i := 0; i < n; i++ {
		root := find(i)
		l, ok := compLabel[root]
		if !ok {
			l = next
			compLabel[root] = l
			next++
		}
		labels[i] = l
	}

	// Components below min_cluster_size are noise.
	sizes := clusterSizes(labels)
	for i, l := range labels {
		if sizes[l] < minClusterSize {
			labels[i] = Noise
		}
	}

	return labels, nil
}
