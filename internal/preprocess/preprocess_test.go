package preprocess

import (
	"math"
	"math/rand"
	"testing"
)

func randomVectors(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(rng.NormFloat64())
		}
		out[i] = v
	}
	return out
}

func TestNormalizeL2_UnitLength(t *testing.T) {
	vectors := randomVectors(10, 128, 1)
	normalized := NormalizeL2(vectors)

	if len(normalized) != len(vectors) {
		t.Fatalf("expected %d vectors, got %d", len(vectors), len(normalized))
	}

	for i, v := range normalized {
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		if math.Abs(math.Sqrt(sum)-1.0) > 1e-5 {
			t.Errorf("vector %d has norm %f, want 1.0", i, math.Sqrt(sum))
		}
	}
}

func TestNormalizeL2_ZeroVectorUnchanged(t *testing.T) {
	vectors := [][]float32{{0, 0, 0}}
	normalized := NormalizeL2(vectors)

	for j, x := range normalized[0] {
		if x != 0 {
			t.Errorf("component %d = %f, want 0", j, x)
		}
	}
}

func TestNormalizeL2_DoesNotMutateInput(t *testing.T) {
	vectors := [][]float32{{3, 4}}
	NormalizeL2(vectors)

	if vectors[0][0] != 3 || vectors[0][1] != 4 {
		t.Errorf("input mutated: %v", vectors[0])
	}
}

func TestPipeline_NoneKeepsDimensionality(t *testing.T) {
	p := Pipeline{Normalize: true, Reduce: ReduceNone}
	out, err := p.Apply(randomVectors(20, 128, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 20 || len(out[0]) != 128 {
		t.Errorf("got %dx%d, want 20x128", len(out), len(out[0]))
	}
}

func TestPipeline_PCAReducesDimensionality(t *testing.T) {
	p := Pipeline{
		Normalize: true,
		Reduce:    ReducePCA,
		PCA:       PCAParams{Components: 8},
	}
	out, err := p.Apply(randomVectors(40, 128, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 40 {
		t.Fatalf("expected 40 vectors, got %d", len(out))
	}
	if len(out[0]) != 8 {
		t.Errorf("expected 8 components, got %d", len(out[0]))
	}
}

func TestPipeline_PCASkippedForSmallSample(t *testing.T) {
	p := Pipeline{
		Normalize: true,
		Reduce:    ReducePCA,
		PCA:       PCAParams{Components: 8},
	}
	// 5 samples cannot support 8 components: pass through normalized-only.
	out, err := p.Apply(randomVectors(5, 128, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out[0]) != 128 {
		t.Errorf("expected pass-through at 128 dims, got %d", len(out[0]))
	}
}

func TestPipeline_PCADeterministic(t *testing.T) {
	vectors := randomVectors(30, 64, 5)
	p := Pipeline{Normalize: true, Reduce: ReducePCA, PCA: PCAParams{Components: 4}}

	first, err := p.Apply(vectors)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.Apply(vectors)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	for i := range first {
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatalf("vector %d component %d differs: %f vs %f", i, j, first[i][j], second[i][j])
			}
		}
	}
}

func TestPipeline_UMAPReducesDimensionality(t *testing.T) {
	p := Pipeline{
		Normalize: true,
		Reduce:    ReduceUMAP,
		UMAP:      UMAPParams{Components: 3, Neighbors: 5, Epochs: 20, Seed: 42},
	}
	out, err := p.Apply(randomVectors(50, 32, 6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 50 || len(out[0]) != 3 {
		t.Errorf("got %dx%d, want 50x3", len(out), len(out[0]))
	}
}

func TestPipeline_UMAPSeedReproducible(t *testing.T) {
	vectors := randomVectors(40, 32, 7)
	p := Pipeline{
		Normalize: true,
		Reduce:    ReduceUMAP,
		UMAP:      UMAPParams{Components: 2, Neighbors: 5, Epochs: 20, Seed: 99},
	}

	first, err := p.Apply(vectors)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.Apply(vectors)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	for i := range first {
		for j := range first[i] {
			if first[i][j] != second[i][j] {
				t.Fatalf("seeded runs diverge at vector %d component %d", i, j)
			}
		}
	}
}

func TestPipeline_UMAPSkippedForSmallSample(t *testing.T) {
	p := Pipeline{
		Normalize: true,
		Reduce:    ReduceUMAP,
		UMAP:      UMAPParams{Components: 2, Neighbors: 15, Seed: 1},
	}
	out, err := p.Apply(randomVectors(10, 32, 8))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out[0]) != 32 {
		t.Errorf("expected pass-through at 32 dims, got %d", len(out[0]))
	}
}

func TestPipeline_UnknownReduction(t *testing.T) {
	p := Pipeline{Reduce: "tsne"}
	if _, err := p.Apply(randomVectors(10, 16, 9)); err == nil {
		t.Error("expected error for unknown reduction method")
	}
}
