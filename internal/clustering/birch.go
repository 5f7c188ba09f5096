package clustering

import (
	"math"
)

// birch performs threshold-driven incremental clustering: points stream
// into CF subclusters (count, linear sum, squared sum) whenever the
// subcluster radius stays under the threshold, and the threshold doubles
// with a rebuild when the subcluster count outgrows the branching factor.
// An optional global step merges subcluster centroids down to n_clusters.
func birch(vectors [][]float32, params map[string]any) ([]int, error) {
	threshold, err := floatParam(params, "threshold", 0.5)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmBirch, Err: err}
	}
	branching, err := intParam(params, "branching_factor", 50)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmBirch, Err: err}
	}
	nClusters, err := intParam(params, "n_clusters", 0)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmBirch, Err: err}
	}
	if threshold <= 0 {
		return nil, failf(AlgorithmBirch, "threshold must be positive, got %g", threshold)
	}
	if branching < 2 {
		return nil, failf(AlgorithmBirch, "branching_factor must be at least 2, got %d", branching)
	}
	if nClusters < 0 {
		return nil, failf(AlgorithmBirch, "n_clusters must not be negative, got %d", nClusters)
	}

	n := len(vectors)
	dim := len(vectors[0])

	assign := func(t float64) ([]cfSubcluster, []int, bool) {
		var subs []cfSubcluster
		labels := make([]int, n)
		for i, v := range vectors {
			best, bestDist := -1, math.Inf(1)
			for s := range subs {
				if d := subs[s].centroidDistance(v); d < bestDist {
					best, bestDist = s, d
				}
			}
			if best >= 0 && subs[best].radiusAfter(v) <= t {
				subs[best].absorb(v)
				labels[i] = best
				continue
			}
			subs = append(subs, newCFSubcluster(v, dim))
			labels[i] = len(subs) - 1
			if len(subs) > branching {
				return nil, nil, false
			}
		}
		return subs, labels, true
	}

	t := threshold
	var subs []cfSubcluster
	var labels []int
	for {
		var ok bool
		subs, labels, ok = assign(t)
		if ok {
			break
		}
		t *= 2 // rebuild with a coarser threshold, as BIRCH does when it runs out of nodes
	}

	// Global step: agglomerate subcluster centroids down to n_clusters.
	if nClusters > 0 && len(subs) > nClusters {
		centroids := make([][]float32, len(subs))
		for s := range subs {
			centroids[s] = subs[s].centroid32()
		}
		merged, err := agglomerative(centroids, map[string]any{
			"n_clusters": nClusters,
			"linkage":    "average",
		})
		if err != nil {
			return nil, err
		}
		for i := range labels {
			labels[i] = merged[labels[i]]
		}
	}

	return labels, nil
}

// cfSubcluster is a clustering feature: enough statistics to compute the
// centroid and radius incrementally.
type cfSubcluster struct {
	count     int
	linearSum []float64
	squareSum float64
}

func newCFSubcluster(v []float32, dim int) cfSubcluster {
	s := cfSubcluster{count: 1, linearSum: make([]float64, dim)}
	for j, x := range v {
		s.linearSum[j] = float64(x)
		s.squareSum += float64(x) * float64(x)
	}
	return s
}

func (s *cfSubcluster) absorb(v []float32) {
	s.count++
	for j, x := range v {
		s.linearSum[j] += float64(x)
		s.squareSum += float64(x) * float64(x)
	}
}

func (s *cfSubcluster) centroidDistance(v []float32) float64 {
	var sum float64
	for j, x := range v {
		d := s.linearSum[j]/float64(s.count) - float64(x)
		sum += d * d
	}
	return math.Sqrt(sum)
}

// radiusAfter computes the subcluster radius as if v were absorbed.
// radius^2 = mean squared norm - squared centroid norm.
func (s *cfSubcluster) radiusAfter(v []float32) float64 {
	count := float64(s.count + 1)
	sq := s.squareSum
	var centroidSq float64
	for j, x := range v {
		sq += float64(x) * float64(x)
		ls := s.linearSum[j] + float64(x)
		centroidSq += (ls / count) * (ls / count)
	}
	r := sq/count - centroidSq
	if r < 0 {
		r = 0
	}
	return math.Sqrt(r)
}

func (s *cfSubcluster) centroid32() []float32 {
	out := make([]float32, len(s.linearSum))
	for j, x := range s.linearSum {
		out[j] = float32(x / float64(s.count))
	}
	return out
}
