// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// DefaultConfigPath returns ~/.config/mnemo/mnemo.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", mnemoerr.Errorf(mnemoerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "mnemo", "mnemo.yaml"), nil
}

// defaultDataDir returns ~/.local/share/mnemo, falling back to a
// relative directory when the home directory cannot be resolved.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "mnemo-data"
	}
	return filepath.Join(home, ".local", "share", "mnemo")
}

// DefaultConfigYAML renders the stock configuration as YAML.
func DefaultConfigYAML() ([]byte, error) {
	cfg := map[string]any{
		"storage": map[string]any{
			"backend":           "sqlite",
			"path":              defaultDataDir(),
			"vector_dimensions": 16,
		},
		"embedding": map[string]any{
			"provider": "fallback",
			"model":    "text-embedding-3-small",
		},
		"maintenance": map[string]any{
			"max_documents": 1000,
			"max_size_mb":   5,
		},
		"compaction": map[string]any{
			"max_size_mb":    1024,
			"staleness_days": 30,
		},
		"retrieval": map[string]any{
			"k":               5,
			"score_threshold": 0.25,
		},
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeConfigParseInvalidFormat, "marshalling default config: %w", err)
	}
	return out, nil
}

// BootstrapConfig writes the default config to path if it does not
// already exist. Returns the path written, or empty string if the file
// already existed or an error occurred (non-fatal, logged and skipped).
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return "" // already exists
	}

	out, err := DefaultConfigYAML()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}

	if err := os.WriteFile(cfgPath, out, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", cfgPath, "error", err)
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}
