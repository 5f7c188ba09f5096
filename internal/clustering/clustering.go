// Package clustering partitions face embeddings into identity groups. Seven
// algorithm variants sit behind one contract: an ordered vector slice in,
// an index-aligned label slice out, with -1 reserved for noise across every
// variant.
package clustering

import (
	"fmt"
)

// Noise is the universal label for points that belong to no cluster.
const Noise = -1

// Supported algorithm names.
const (
	AlgorithmDBSCAN              = "dbscan"
	AlgorithmHDBSCAN             = "hdbscan"
	AlgorithmOPTICS              = "optics"
	AlgorithmAffinityPropagation = "affinity_propagation"
	AlgorithmChineseWhispers     = "chinese_whispers"
	AlgorithmAgglomerative       = "agglomerative"
	AlgorithmBirch               = "birch"
)

// Config selects an algorithm and its parameters for one clustering pass.
type Config struct {
	Algorithm string         `yaml:"algorithm"`
	Params    map[string]any `yaml:"params"`

	// MinClusterSize demotes groups below this size to noise. Applies to
	// every algorithm, including the hierarchical ones that do not
	// natively produce noise points.
	MinClusterSize int `yaml:"min_cluster_size"`

	// AllowSingletons keeps one-member clusters instead of demoting them
	// to noise.
	AllowSingletons bool `yaml:"allow_singletons"`
}

// Error wraps a failure of one algorithm invocation with the algorithm
// name, so the orchestrator can log which configuration broke without
// aborting the whole pass.
type Error struct {
	Algorithm string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("clustering with %s: %v", e.Algorithm, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func failf(algorithm, format string, args ...any) error {
	return &Error{Algorithm: algorithm, Err: fmt.Errorf(format, args...)}
}

// Cluster partitions the vectors using the configured algorithm. Labels are
// index-aligned with the input. Zero vectors yield empty labels; a single
// vector is noise unless singletons are allowed.
func Cluster(vectors [][]float32, cfg Config) ([]int, error) {
	n := len(vectors)
	if n == 0 {
		return []int{}, nil
	}
	if n == 1 {
		if cfg.AllowSingletons {
			return []int{0}, nil
		}
		return []int{Noise}, nil
	}

	var labels []int
	var err error

	switch cfg.Algorithm {
	case AlgorithmDBSCAN:
		labels, err = dbscan(vectors, cfg.Params)
	case AlgorithmHDBSCAN:
		labels, err = hdbscan(vectors, cfg.Params)
	case AlgorithmOPTICS:
		labels, err = optics(vectors, cfg.Params)
	case AlgorithmAffinityPropagation:
		labels, err = affinityPropagation(vectors, cfg.Params)
	case AlgorithmChineseWhispers:
		labels, err = chineseWhispers(vectors, cfg.Params)
	case AlgorithmAgglomerative:
		labels, err = agglomerative(vectors, cfg.Params)
	case AlgorithmBirch:
		labels, err = birch(vectors, cfg.Params)
	default:
		return nil, failf(cfg.Algorithm, "unknown algorithm")
	}
	if err != nil {
		return nil, err
	}

	minSize := cfg.MinClusterSize
	if minSize < 2 && !cfg.AllowSingletons {
		minSize = 2
	}
	return finalizeLabels(labels, minSize), nil
}
