// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// Config is the top-level Mnemo configuration.
type Config struct {
	Storage     StorageConfig     `mapstructure:"storage"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Compaction  CompactionConfig  `mapstructure:"compaction"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
}

// StorageConfig selects the vector index backend and persistence root.
type StorageConfig struct {
	Backend          string `mapstructure:"backend"`
	Path             string `mapstructure:"path"`
	VectorDimensions int    `mapstructure:"vector_dimensions"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	// Provider is "openai" or "fallback". The fallback path is always
	// available regardless of this setting; "fallback" just skips the
	// provider entirely.
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Endpoint string `mapstructure:"endpoint"`
}

// MaintenanceConfig bounds the per-save maintenance check.
type MaintenanceConfig struct {
	MaxDocuments int     `mapstructure:"max_documents"`
	MaxSizeMB    float64 `mapstructure:"max_size_mb"`
}

// CompactionConfig bounds the scheduled stale-document compaction.
type CompactionConfig struct {
	MaxSizeMB     float64 `mapstructure:"max_size_mb"`
	StalenessDays int     `mapstructure:"staleness_days"`
}

// RetrievalConfig sets retrieval defaults.
type RetrievalConfig struct {
	K              int     `mapstructure:"k"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
}

// SetDefaults installs the stock configuration values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", defaultDataDir())
	v.SetDefault("storage.vector_dimensions", 16)
	v.SetDefault("embedding.provider", "fallback")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("maintenance.max_documents", 1000)
	v.SetDefault("maintenance.max_size_mb", 5)
	v.SetDefault("compaction.max_size_mb", 1024)
	v.SetDefault("compaction.staleness_days", 30)
	v.SetDefault("retrieval.k", 5)
	v.SetDefault("retrieval.score_threshold", 0.25)
}

// SetupEnv binds MNEMO_-prefixed environment variables.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("MNEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, mnemoerr.Errorf(mnemoerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a populated Viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors, collecting all
// issues rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite], got %q", c.Storage.Backend))
	}
	if c.Storage.Path == "" {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: storage.path must not be empty"))
	}
	if c.Storage.VectorDimensions <= 0 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: storage.vector_dimensions must be greater than 0, got %d", c.Storage.VectorDimensions))
	}

	validProviders := map[string]bool{"openai": true, "fallback": true}
	if !validProviders[c.Embedding.Provider] {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: embedding.provider must be one of [openai, fallback], got %q", c.Embedding.Provider))
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: embedding.api_key must be set when embedding.provider is openai"))
	}

	if c.Maintenance.MaxDocuments <= 0 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: maintenance.max_documents must be greater than 0, got %d", c.Maintenance.MaxDocuments))
	}
	if c.Maintenance.MaxSizeMB <= 0 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: maintenance.max_size_mb must be greater than 0, got %g", c.Maintenance.MaxSizeMB))
	}
	if c.Compaction.MaxSizeMB <= 0 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: compaction.max_size_mb must be greater than 0, got %g", c.Compaction.MaxSizeMB))
	}
	if c.Compaction.StalenessDays <= 0 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: compaction.staleness_days must be greater than 0, got %d", c.Compaction.StalenessDays))
	}

	if c.Retrieval.K <= 0 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: retrieval.k must be greater than 0, got %d", c.Retrieval.K))
	}
	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		errs = append(errs, mnemoerr.Errorf(mnemoerr.CodeConfigValidateInvalidValue,
			"config: retrieval.score_threshold must be between 0 and 1, got %g", c.Retrieval.ScoreThreshold))
	}

	return errs
}
