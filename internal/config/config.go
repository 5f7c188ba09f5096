// Package config loads the worker configuration: connection and runtime
// settings from environment variables, and the clustering surface from an
// embedded YAML file that deployments can override.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kanta-app/cluster-faces/internal/preprocess"
)

//go:embed clustering.yaml
var defaultClusteringYAML []byte

type Config struct {
	Database   DatabaseConfig
	Daemon     DaemonConfig
	Clustering ClusteringConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type DaemonConfig struct {
	IntervalMinutes int    // Minutes between clustering passes (default 5)
	StatusHost      string // Host for the status endpoint (default 0.0.0.0)
	StatusPort      int    // Port for the status endpoint (default 8090)
}

// ClusteringConfig is the declarative clustering surface, loaded once per
// invocation.
type ClusteringConfig struct {
	Algorithm       string              `yaml:"algorithm"`
	Params          map[string]any      `yaml:"params"`
	MinClusterSize  int                 `yaml:"min_cluster_size"`
	AllowSingletons bool                `yaml:"allow_singletons"`
	Preprocessing   preprocess.Pipeline `yaml:"preprocessing"`

	// MinOverlapFraction is the reconciliation anchoring bar, in (0, 1].
	MinOverlapFraction float64 `yaml:"min_overlap_fraction"`

	LeaseTTLSeconds     int `yaml:"lease_ttl_seconds"`
	EventTimeoutSeconds int `yaml:"event_timeout_seconds"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// Load reads environment variables and the clustering YAML. The embedded
// defaults apply unless CLUSTERING_CONFIG_PATH points at an override file.
func Load() (*Config, error) {
	clustering, err := loadClustering(os.Getenv("CLUSTERING_CONFIG_PATH"))
	if err != nil {
		return nil, err
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Daemon: DaemonConfig{
			IntervalMinutes: envInt("CLUSTER_INTERVAL_MINUTES", 5),
			StatusHost:      envString("STATUS_HOST", "0.0.0.0"),
			StatusPort:      envInt("STATUS_PORT", 8090),
		},
		Clustering: *clustering,
	}, nil
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func loadClustering(path string) (*ClusteringConfig, error) {
	raw := defaultClusteringYAML
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading clustering config %s: %w", path, err)
		}
		raw = data
	}

	var cfg ClusteringConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing clustering config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the engine cannot run with. Algorithm
// parameter validation happens inside the clustering package, where the
// parameters are understood.
func (c *ClusteringConfig) Validate() error {
	if c.Algorithm == "" {
		return fmt.Errorf("clustering config: algorithm is required")
	}
	if c.MinOverlapFraction <= 0 || c.MinOverlapFraction > 1 {
		return fmt.Errorf("clustering config: min_overlap_fraction must be in (0, 1], got %g", c.MinOverlapFraction)
	}
	if c.LeaseTTLSeconds <= 0 {
		return fmt.Errorf("clustering config: lease_ttl_seconds must be positive, got %d", c.LeaseTTLSeconds)
	}
	return nil
}
