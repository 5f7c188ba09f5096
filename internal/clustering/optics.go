package clustering

import (
	"container/heap"
	"math"
	"sort"
)

// optics computes the OPTICS reachability ordering and extracts clusters at
// a fixed eps, which is deterministic and equivalent to DBSCAN at that
// radius while still honoring the density ordering.
func optics(vectors [][]float32, params map[string]any) ([]int, error) {
	minSamples, err := intParam(params, "min_samples", 5)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmOPTICS, Err: err}
	}
	eps, err := floatParam(params, "eps", 0.5)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmOPTICS, Err: err}
	}
	maxEps, err := floatParam(params, "max_eps", math.Inf(1))
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmOPTICS, Err: err}
	}
	metric, err := stringParam(params, "metric", MetricEuclidean)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmOPTICS, Err: err}
	}
	if minSamples < 2 {
		return nil, failf(AlgorithmOPTICS, "min_samples must be at least 2, got %d", minSamples)
	}
	if eps <= 0 {
		return nil, failf(AlgorithmOPTICS, "eps must be positive, got %g", eps)
	}
	if err := validMetric(metric); err != nil {
		return nil, &Error{Algorithm: AlgorithmOPTICS, Err: err}
	}

	n := len(vectors)
	dist := distanceMatrix(vectors, metric)

	// Core distance: distance to the (minSamples-1)th nearest neighbor,
	// or +Inf when it exceeds maxEps.
	coreDist := make([]float64, n)
	for i := 0; i < n; i++ {
		ds := make([]float64, 0, n-1)
		for j := 0; j < n; j++ {
			if i != j {
				ds = append(ds, dist[i][j])
			}
		}
		sort.Float64s(ds)
		cd := ds[minSamples-2]
		if cd > maxEps {
			cd = math.Inf(1)
		}
		coreDist[i] = cd
	}

	reach := make([]float64, n)
	ordering := make([]int, 0, n)
	processed := make([]bool, n)
	for i := range reach {
		reach[i] = math.Inf(1)
	}

	for start := 0; start < n; start++ {
		if processed[start] {
			continue
		}
		pq := &reachQueue{}
		heap.Init(pq)
		heap.Push(pq, reachItem{index: start, reach: math.Inf(1)})

		for pq.Len() > 0 {
			item := heap.Pop(pq).(reachItem)
			i := item.index
			if processed[i] {
				continue
			}
			processed[i] = true
			ordering = append(ordering, i)

			if math.IsInf(coreDist[i], 1) {
				continue
			}
			for j := 0; j < n; j++ {
				if processed[j] || dist[i][j] > maxEps {
					continue
				}
				newReach := math.Max(coreDist[i], dist[i][j])
				if newReach < reach[j] {
					reach[j] = newReach
					heap.Push(pq, reachItem{index: j, reach: newReach})
				}
			}
		}
	}

	// Fixed-eps extraction over the ordering.
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	cluster := -1
	for _, i := range ordering {
		if reach[i] > eps {
			if coreDist[i] <= eps {
				cluster++
				labels[i] = cluster
			}
			// else: noise
			continue
		}
		if cluster >= 0 {
			labels[i] = cluster
		}
	}

	return labels, nil
}

type reachItem struct {
	index int
	reach float64
}

type reachQueue []reachItem

func (q reachQueue) Len() int { return len(q) }
func (q reachQueue) Less(i, j int) bool {
	if q[i].reach != q[j].reach {
		return q[i].reach < q[j].reach
	}
	return q[i].index < q[j].index
}
func (q reachQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *reachQueue) Push(x any) { *q = append(*q, x.(reachItem)) }
func (q *reachQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
