package clustering

// dbscan implements density-based clustering: a point with at least
// min_samples neighbors within eps (itself included) is a core point, and
// clusters grow by expanding from core points. Everything unreachable from
// a core point is noise.
func dbscan(vectors [][]float32, params map[string]any) ([]int, error) {
	eps, err := floatParam(params, "eps", 0.5)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmDBSCAN, Err: err}
	}
	minSamples, err := intParam(params, "min_samples", 5)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmDBSCAN, Err: err}
	}
	metric, err := stringParam(params, "metric", MetricEuclidean)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmDBSCAN, Err: err}
	}
	if eps <= 0 {
		return nil, failf(AlgorithmDBSCAN, "eps must be positive, got %g", eps)
	}
	if minSamples < 1 {
		return nil, failf(AlgorithmDBSCAN, "min_samples must be at least 1, got %d", minSamples)
	}
	if err := validMetric(metric); err != nil {
		return nil, &Error{Algorithm: AlgorithmDBSCAN, Err: err}
	}

	n := len(vectors)
	dist := distanceMatrix(vectors, metric)

	// Neighborhoods include the point itself, matching the usual
	// min_samples semantics.
	neighborhoods := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if dist[i][j] <= eps {
				neighborhoods[i] = append(neighborhoods[i], j)
			}
		}
	}

	const unvisited = -2
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	cluster := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		if len(neighborhoods[i]) < minSamples {
			labels[i] = Noise
			continue
		}

		labels[i] = cluster
		frontier := append([]int(nil), neighborhoods[i]...)
		for len(frontier) > 0 {
			j := frontier[0]
			frontier = frontier[1:]
			if labels[j] == Noise {
				labels[j] = cluster // border point, reachable but not core
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			if len(neighborhoods[j]) >= minSamples {
				frontier = append(frontier, neighborhoods[j]...)
			}
		}
		cluster++
	}

	return labels, nil
}
