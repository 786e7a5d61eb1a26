package config

import (
	"fmt"
	"strconv"
)

// PipelineConfig represents the configuration for the extraction pipeline.
// Exclude lists input-root-relative file paths to skip, for files that must
// not enter the dataset.
type PipelineConfig struct {
	InputDir  string
	OutputDir string
	Exclude   []string
	Workers   int
}

// ThreadConfig represents the configuration for thread splitting
type ThreadConfig struct {
	Markers  []string
	MaxDepth int
}

// IdentityConfig represents the configuration for identity resolution
type IdentityConfig struct {
	InternalDomains []string
	ManualAliases   map[string]int
}

// StoreConfig represents the configuration for the dataset store
type StoreConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// GetPipeline returns the pipeline configuration
func (c *Config) GetPipeline() PipelineConfig {
	return PipelineConfig{
		InputDir:  c.GetString("input.dir"),
		OutputDir: c.GetString("output.dir"),
		Exclude:   c.GetStringSlice("input.exclude"),
		Workers:   c.GetInt("pipeline.workers"),
	}
}

// GetThread returns the thread splitting configuration
func (c *Config) GetThread() ThreadConfig {
	return ThreadConfig{
		Markers:  c.GetStringSlice("thread.markers"),
		MaxDepth: c.GetInt("thread.max_depth"),
	}
}

// GetIdentity returns the identity resolution configuration. Manual alias
// values are person ids, kept as strings in the config file so the table
// round-trips through YAML and environment variables.
func (c *Config) GetIdentity() (IdentityConfig, error) {
	raw := c.GetStringMapString("identity.manual_aliases")
	manual := make(map[string]int, len(raw))
	for alias, idStr := range raw {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return IdentityConfig{}, fmt.Errorf("invalid manual alias id for %q: %w", alias, err)
		}
		manual[alias] = id
	}
	return IdentityConfig{
		InternalDomains: c.GetStringSlice("identity.internal_domains"),
		ManualAliases:   manual,
	}, nil
}

// GetStore returns the dataset store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
}
