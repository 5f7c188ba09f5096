// Package preprocess transforms raw face embeddings into the representation
// the clustering algorithms expect: L2 normalization plus optional
// dimensionality reduction. All transforms are order-preserving and
// index-aligned with their input so the caller never loses the face id
// association.
package preprocess

import (
	"fmt"
	"math"
)

// Reduction method names accepted by Pipeline.Reduce.
const (
	ReduceNone = "none"
	ReducePCA  = "pca"
	ReduceUMAP = "umap"
)

// Pipeline describes the preprocessing steps for one clustering pass.
// Steps run in a fixed order: normalize, then reduce.
type Pipeline struct {
	Normalize bool       `yaml:"normalize"`
	Reduce    string     `yaml:"reduce"`
	PCA       PCAParams  `yaml:"pca"`
	UMAP      UMAPParams `yaml:"umap"`
}

// PCAParams configures PCA reduction.
type PCAParams struct {
	Components int  `yaml:"n_components"`
	Whiten     bool `yaml:"whiten"`
}

// UMAPParams configures UMAP reduction.
type UMAPParams struct {
	Components int     `yaml:"n_components"`
	Neighbors  int     `yaml:"n_neighbors"`
	MinDist    float64 `yaml:"min_dist"`
	Metric     string  `yaml:"metric"`
	Epochs     int     `yaml:"n_epochs"`
	Seed       int64   `yaml:"seed"`
}

// Apply runs the configured steps over the vectors. The input is never
// mutated. When the sample count is below the reduction method's minimum
// viable size, reduction is skipped and the normalized vectors pass
// through, so a small event never fails its whole run.
func (p Pipeline) Apply(vectors [][]float32) ([][]float32, error) {
	out := vectors
	if p.Normalize {
		out = NormalizeL2(out)
	}

	switch p.Reduce {
	case "", ReduceNone:
		return out, nil
	case ReducePCA:
		components := p.PCA.Components
		if components <= 0 {
			return nil, fmt.Errorf("pca: n_components must be positive, got %d", components)
		}
		if len(out) <= components {
			return out, nil // too few samples, pass through
		}
		return reducePCA(out, components, p.PCA.Whiten)
	case ReduceUMAP:
		params := p.UMAP.withDefaults()
		if params.Components <= 0 {
			return nil, fmt.Errorf("umap: n_components must be positive, got %d", params.Components)
		}
		if len(out) <= params.Neighbors+1 {
			return out, nil // too few samples, pass through
		}
		return reduceUMAP(out, params)
	default:
		return nil, fmt.Errorf("unknown reduction method %q", p.Reduce)
	}
}

// NormalizeL2 scales each vector to unit length. Zero vectors are returned
// unchanged. The result is a fresh slice; the input is not modified.
func NormalizeL2(vectors [][]float32) [][]float32 {
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		w := make([]float32, len(v))
		if sum == 0 {
			copy(w, v)
		} else {
			norm := math.Sqrt(sum)
			for j, x := range v {
				w[j] = float32(float64(x) / norm)
			}
		}
		out[i] = w
	}
	return out
}

func (u UMAPParams) withDefaults() UMAPParams {
	if u.Neighbors <= 0 {
		u.Neighbors = 15
	}
	if u.MinDist <= 0 {
		u.MinDist = 0.1
	}
	if u.Metric == "" {
		u.Metric = "euclidean"
	}
	if u.Epochs <= 0 {
		u.Epochs = 200
	}
	return u
}
