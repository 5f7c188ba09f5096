package clustering

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// affinityPropagation exchanges responsibility and availability messages
// over a negative-squared-distance similarity matrix until the exemplar
// set has been stable for convergence_iter rounds or max_iter is reached.
// The preference (self-similarity) defaults to the median similarity,
// which favors a moderate number of clusters.
func affinityPropagation(vectors [][]float32, params map[string]any) ([]int, error) {
	damping, err := floatParam(params, "damping", 0.5)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmAffinityPropagation, Err: err}
	}
	maxIter, err := intParam(params, "max_iter", 200)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmAffinityPropagation, Err: err}
	}
	convergenceIter, err := intParam(params, "convergence_iter", 15)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmAffinityPropagation, Err: err}
	}
	preference, err := floatParam(params, "preference", 0)
	if err != nil {
		return nil, &Error{Algorithm: AlgorithmAffinityPropagation, Err: err}
	}
	hasPreference := params["preference"] != nil
	if damping < 0.5 || damping >= 1 {
		return nil, failf(AlgorithmAffinityPropagation, "damping must be in [0.5, 1), got %g", damping)
	}
	if maxIter < 1 {
		return nil, failf(AlgorithmAffinityPropagation, "max_iter must be at least 1, got %d", maxIter)
	}
	if convergenceIter < 1 {
		return nil, failf(AlgorithmAffinityPropagation, "convergence_iter must be at least 1, got %d", convergenceIter)
	}

	n := len(vectors)
	dist := distanceMatrix(vectors, MetricEuclidean)

	// Similarity: negative squared euclidean distance.
	s := mat.NewDense(n, n, nil)
	sims := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			v := -dist[i][j] * dist[i][j]
			s.Set(i, j, v)
			if j > i {
				sims = append(sims, v)
			}
		}
	}
	if !hasPreference {
		sort.Float64s(sims)
		preference = stat.Quantile(0.5, stat.Empirical, sims, nil)
	}
	for i := 0; i < n; i++ {
		s.Set(i, i, preference)
	}

	r := mat.NewDense(n, n, nil)
	a := mat.NewDense(n, n, nil)

	var lastExemplars []int
	stable := 0

	for iter := 0; iter < maxIter; iter++ {
		// Responsibilities: r(i,k) = s(i,k) - max_{k'!=k}(a(i,k') + s(i,k')).
		for i := 0; i < n; i++ {
			best, second := math.Inf(-1), math.Inf(-1)
			bestK := -1
			for k := 0; k < n; k++ {
				v := a.At(i, k) + s.At(i, k)
				if v > best {
					second = best
					best = v
					bestK = k
				} else if v > second {
					second = v
				}
			}
			for k := 0; k < n; k++ {
				ref := best
				if k == bestK {
					ref = second
				}
				newR := s.At(i, k) - ref
				r.Set(i, k, damping*r.At(i, k)+(1-damping)*newR)
			}
		}

		// Availabilities: a(i,k) = min(0, r(k,k) + sum_{i'!=i,k} max(0, r(i',k)));
		// a(k,k) = sum_{i'!=k} max(0, r(i',k)).
		for k := 0; k < n; k++ {
			var sum float64
			for i := 0; i < n; i++ {
				if i != k && r.At(i, k) > 0 {
					sum += r.At(i, k)
				}
			}
			for i := 0; i < n; i++ {
				var newA float64
				if i == k {
					newA = sum
				} else {
					v := r.At(k, k) + sum
					if r.At(i, k) > 0 {
						v -= r.At(i, k)
					}
					if v > 0 {
						v = 0
					}
					newA = v
				}
				a.Set(i, k, damping*a.At(i, k)+(1-damping)*newA)
			}
		}

		// Exemplars: points where a(k,k) + r(k,k) > 0.
		var exemplars []int
		for k := 0; k < n; k++ {
			if a.At(k, k)+r.At(k, k) > 0 {
				exemplars = append(exemplars, k)
			}
		}
		if equalInts(exemplars, lastExemplars) {
			stable++
			if stable >= convergenceIter && len(exemplars) > 0 {
				break
			}
		} else {
			stable = 0
			lastExemplars = exemplars
		}
	}

	if len(lastExemplars) == 0 {
		// No structure emerged; everything is noise.
		labels := make([]int, n)
		for i := range labels {
			labels[i] = Noise
		}
		return labels, nil
	}

	// Assign each point to its most similar exemplar.
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		best, bestSim := -1, 0.0
		for c, k := range lastExemplars {
			if i == k {
				best = c
				break
			}
			if sim := s.At(i, k); best < 0 || sim > bestSim {
				best, bestSim = c, sim
			}
		}
		labels[i] = best
	}
	return labels, nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
