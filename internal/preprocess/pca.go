package preprocess

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// reducePCA projects the vectors onto their top principal components using
// a thin SVD of the mean-centered data matrix. Fully deterministic.
func reducePCA(vectors [][]float32, components int, whiten bool) ([][]float32, error) {
	n := len(vectors)
	d := len(vectors[0])
	if components > d {
		components = d
	}

	// Column means.
	means := make([]float64, d)
	for _, v := range vectors {
		for j, x := range v {
			means[j] += float64(x)
		}
	}
	for j := range means {
		means[j] /= float64(n)
	}

	// Mean-centered data matrix.
	data := mat.NewDense(n, d, nil)
	for i, v := range vectors {
		for j, x := range v {
			data.Set(i, j, float64(x)-means[j])
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(data, mat.SVDThin); !ok {
		return nil, fmt.Errorf("pca: svd factorization failed")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sigma := svd.Values(nil)

	// Scores are U * Sigma restricted to the leading components.
	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		row := make([]float32, components)
		for k := 0; k < components; k++ {
			score := u.At(i, k) * sigma[k]
			if whiten {
				// Unit variance per component: divide by the
				// component's standard deviation.
				std := sigma[k] / math.Sqrt(float64(n-1))
				if std > 0 {
					score /= std
				}
			}
			row[k] = float32(score)
		}
		out[i] = row
	}
	return out, nil
}
