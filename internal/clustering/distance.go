package clustering

import (
	"fmt"
	"math"

	"github.com/kanta-app/cluster-faces/internal/store"
)

// Supported distance metrics. Embeddings arrive L2-normalized, so
// euclidean and cosine induce the same neighbor ordering; both are kept
// because eps-style thresholds are calibrated against a specific one.
const (
	MetricEuclidean = "euclidean"
	MetricCosine    = "cosine"
)

func validMetric(metric string) error {
	switch metric {
	case MetricEuclidean, MetricCosine:
		return nil
	default:
		return fmt.Errorf("unknown metric %q", metric)
	}
}

func distance(a, b []float32, metric string) float64 {
	if metric == MetricCosine {
		return store.CosineDistance(a, b)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// distanceMatrix computes the full symmetric pairwise distance matrix.
// Quadratic in memory, acceptable at per-event face counts.
func distanceMatrix(vectors [][]float32, metric string) [][]float64 {
	n := len(vectors)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := distance(vectors[i], vectors[j], metric)
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m
}
