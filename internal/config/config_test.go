package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	t.Setenv("CLUSTERING_CONFIG_PATH", "")
	t.Setenv("DATABASE_URL", "postgres://test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Clustering.Algorithm != "dbscan" {
		t.Errorf("expected default algorithm dbscan, got %q", cfg.Clustering.Algorithm)
	}
	if cfg.Clustering.MinOverlapFraction != 0.5 {
		t.Errorf("expected min_overlap_fraction 0.5, got %g", cfg.Clustering.MinOverlapFraction)
	}
	if cfg.Clustering.LeaseTTLSeconds != 300 {
		t.Errorf("expected lease_ttl_seconds 300, got %d", cfg.Clustering.LeaseTTLSeconds)
	}
	if !cfg.Clustering.Preprocessing.Normalize {
		t.Errorf("expected normalization enabled by default")
	}
	if cfg.Database.URL != "postgres://test" {
		t.Errorf("expected database url from env, got %q", cfg.Database.URL)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected default max open conns 25, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestEnvIntOverrides(t *testing.T) {
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "50")
	t.Setenv("DATABASE_MAX_IDLE_CONNS", "garbage")
	t.Setenv("CLUSTER_INTERVAL_MINUTES", "-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.MaxOpenConns != 50 {
		t.Errorf("expected max open conns 50, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns != 5 {
		t.Errorf("expected invalid value to fall back to 5, got %d", cfg.Database.MaxIdleConns)
	}
	if cfg.Daemon.IntervalMinutes != 5 {
		t.Errorf("expected negative value to fall back to 5, got %d", cfg.Daemon.IntervalMinutes)
	}
}

func TestLoadClusteringOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clustering.yaml")
	override := []byte(`
algorithm: chinese_whispers
params:
  threshold: 0.4
min_cluster_size: 3
min_overlap_fraction: 0.6
lease_ttl_seconds: 60
event_timeout_seconds: 30
preprocessing:
  normalize: false
  reduce: pca
  pca:
    n_components: 32
`)
	if err := os.WriteFile(path, override, 0o644); err != nil {
		t.Fatalf("writing override file: %v", err)
	}

	cfg, err := loadClustering(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Algorithm != "chinese_whispers" {
		t.Errorf("expected algorithm chinese_whispers, got %q", cfg.Algorithm)
	}
	if cfg.MinClusterSize != 3 {
		t.Errorf("expected min_cluster_size 3, got %d", cfg.MinClusterSize)
	}
	if cfg.Preprocessing.Normalize {
		t.Errorf("expected normalization disabled by override")
	}
	if cfg.Preprocessing.Reduce != "pca" {
		t.Errorf("expected pca reduction, got %q", cfg.Preprocessing.Reduce)
	}
	if cfg.Preprocessing.PCA.Components != 32 {
		t.Errorf("expected 32 pca components, got %d", cfg.Preprocessing.PCA.Components)
	}
}

func TestLoadClusteringMissingFile(t *testing.T) {
	if _, err := loadClustering("/nonexistent/clustering.yaml"); err == nil {
		t.Errorf("expected error for missing override file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClusteringConfig
	}{
		{"missing algorithm", ClusteringConfig{MinOverlapFraction: 0.5, LeaseTTLSeconds: 60}},
		{"zero overlap", ClusteringConfig{Algorithm: "dbscan", LeaseTTLSeconds: 60}},
		{"overlap above one", ClusteringConfig{Algorithm: "dbscan", MinOverlapFraction: 1.5, LeaseTTLSeconds: 60}},
		{"zero lease ttl", ClusteringConfig{Algorithm: "dbscan", MinOverlapFraction: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}
