package clustering

import (
	"math"
)

// agglomerative merges clusters bottom-up under the configured linkage
// until either the target cluster count is reached or no pair sits below
// the distance threshold. Exactly one of n_clusters and distance_threshold
// must be set, matching the scikit-learn parameterization the original
// configs were written against.
func agglomerative(vectors [][]float32, params map[string]any) ([]int, error) {
	nClusters, err := intParam(params, "n_clusters", 0)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmAgglomerative, Err: err}
	}
	threshold, err := floatParam(params, "distance_threshold", 0)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmAgglomerative, Err: err}
	}
	linkage, err := stringParam(params, "linkage", "average")
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmAgglomerative, Err: err}
	}
	metric, err := stringParam(params, "metric", MetricEuclidean)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmAgglomerative, Err: err}
	}
	if (nClusters > 0) == (threshold > 0) {
		return nil, failf(AlgorithmAgglomerative, "exactly one of n_clusters and distance_threshold must be set")
	}
	switch linkage {
	case "single", "complete", "average":
	default:
		return nil, failf(AlgorithmAgglomerative, "unknown linkage %q", linkage)
	}
	if err := validMetric(metric); err != nil {
		return nil, &Error{Algorithm: AlgorithmAgglomerative, Err: err}
	}

	n := len(vectors)
	dist := distanceMatrix(vectors, metric)

	// active clusters, each a member list; cluster distances maintained
	// with Lance-Williams updates over the shrinking matrix.
	members := make([][]int, n)
	for i := range members {
		members[i] = []int{i}
	}
	cd := make([][]float64, n)
	for i := range cd {
		cd[i] = append([]float64(nil), dist[i]...)
	}
	active := make([]bool, n)
	for i := range active {
		active[i] = true
	}
	remaining := n

	stop := func(minDist float64) bool {
		if nClusters > 0 {
			return remaining <= nClusters
		}
		return minDist > threshold
	}

	for remaining > 1 {
		// Closest active pair.
		bi, bj, bd := -1, -1, math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && cd[i][j] < bd {
					bi, bj, bd = i, j, cd[i][j]
				}
			}
		}
		if bi < 0 || stop(bd) {
			break
		}

		// Merge bj into bi.
		for k := 0; k < n; k++ {
			if !active[k] || k == bi || k == bj {
				continue
			}
			var d float64
			switch linkage {
			case "single":
				d = math.Min(cd[bi][k], cd[bj][k])
			case "complete":
				d = math.Max(cd[bi][k], cd[bj][k])
			case "average":
				ni, nj := float64(len(members[bi])), float64(len(members[bj]))
				d = (ni*cd[bi][k] + nj*cd[bj][k]) / (ni + nj)
			}
			cd[bi][k] = d
			cd[k][bi] = d
		}
		members[bi] = append(members[bi], members[bj]...)
		members[bj] = nil
		active[bj] = false
		remaining--
	}

	labels := make([]int, n)
	cluster := 0
	for i := 0; i < n; i++ {
		if !active[i] {
			continue
		}
		for _, m := range members[i] {
			labels[m] = cluster
		}
		cluster++
	}
	return labels, nil
}
