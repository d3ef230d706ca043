package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/1F47E/station-cluster/pkg/cluster"
	"github.com/1F47E/station-cluster/pkg/metrics"
	"github.com/1F47E/station-cluster/pkg/models"
	"github.com/1F47E/station-cluster/pkg/postgis"
	"github.com/1F47E/station-cluster/pkg/quadtree"
)

// Config structure for YAML configuration
type Config struct {
	Cluster ClusterConfig  `yaml:"cluster"`
	Logging LoggingConfig  `yaml:"logging"`
	PostGIS postgis.Config `yaml:"postgis"`
	Metrics MetricsConfig  `yaml:"metrics"`
}

type ClusterConfig struct {
	MaxDepth        int                `yaml:"max_depth"`
	Domain          models.BoundingBox `yaml:"domain"`
	MinPadding      float64            `yaml:"min_padding"`
	PaddingFraction float64            `yaml:"padding_fraction"`
	Policy          quadtree.Policy    `yaml:"policy"`
	Bands           []cluster.ZoomBand `yaml:"zoom_bands"`
	Fallback        float64            `yaml:"fallback_distance"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the stock configuration
func Default() *Config {
	opts := cluster.DefaultOptions()
	return &Config{
		Cluster: ClusterConfig{
			MaxDepth:        opts.MaxDepth,
			Domain:          opts.Domain,
			MinPadding:      opts.MinPadding,
			PaddingFraction: opts.PaddingFraction,
			Policy:          opts.Policy,
			Bands:           append([]cluster.ZoomBand(nil), opts.Bands...),
			Fallback:        opts.Fallback,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		PostGIS: postgis.Config{
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Password:       "postgres",
			Database:       "stations",
			SSLMode:        "disable",
			MaxConnections: 25,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that configuration fields are sane.
func (c *Config) Validate() error {
	var errs []string

	// zero values here would be replaced by builder defaults
	if c.Cluster.MaxDepth < 1 {
		errs = append(errs, fmt.Sprintf("cluster.max_depth must be >= 1, got %d", c.Cluster.MaxDepth))
	}
	if !c.Cluster.Domain.Valid() {
		errs = append(errs, "cluster.domain min must not exceed max")
	}
	if c.Cluster.MinPadding <= 0 {
		errs = append(errs, "cluster.min_padding must be positive")
	}
	if c.Cluster.PaddingFraction <= 0 {
		errs = append(errs, "cluster.padding_fraction must be positive")
	}
	if c.Cluster.Fallback <= 0 {
		errs = append(errs, "cluster.fallback_distance must be positive")
	}
	policy := c.Cluster.Policy
	if policy.SubdivideThreshold < 1 {
		errs = append(errs, fmt.Sprintf("cluster.policy.subdivide_threshold must be >= 1, got %d", policy.SubdivideThreshold))
	}
	if policy.DenseSubtree < 1 {
		errs = append(errs, fmt.Sprintf("cluster.policy.dense_subtree must be >= 1, got %d", policy.DenseSubtree))
	}
	if policy.LeafSpreadFactor <= 0 {
		errs = append(errs, "cluster.policy.leaf_spread_factor must be positive")
	}
	if policy.MetersPerDegree <= 0 {
		errs = append(errs, "cluster.policy.meters_per_degree must be positive")
	}
	for i, band := range c.Cluster.Bands {
		if band.MinDistance <= 0 {
			errs = append(errs, fmt.Sprintf("cluster.zoom_bands[%d].min_distance must be positive", i))
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	if c.PostGIS.Port < 0 || c.PostGIS.Port > 65535 {
		errs = append(errs, fmt.Sprintf("postgis.port must be 1-65535, got %d", c.PostGIS.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ClusterOptions maps the cluster section to builder options
func (c *Config) ClusterOptions(logger *slog.Logger, m *metrics.Collector) cluster.Options {
	return cluster.Options{
		MaxDepth:        c.Cluster.MaxDepth,
		Domain:          c.Cluster.Domain,
		Policy:          c.Cluster.Policy,
		Bands:           c.Cluster.Bands,
		Fallback:        c.Cluster.Fallback,
		MinPadding:      c.Cluster.MinPadding,
		PaddingFraction: c.Cluster.PaddingFraction,
		Logger:          logger,
		Metrics:         m,
	}
}
