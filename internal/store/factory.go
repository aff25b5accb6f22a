// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package store

import (
	"sync"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// defaultVectorDimensions matches the deterministic fallback embedder,
// so a zero-config store works without any provider credentials.
const defaultVectorDimensions = 16

// IndexFactory creates a vector index rooted at a directory path with
// the given embedding dimensionality.
type IndexFactory func(rootPath string, dimensions int) (VectorIndex, error)

var (
	indexFactories = map[string]IndexFactory{}
	factoriesMu    sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). Goroutine-safe.
func RegisterBackend(name string, factory IndexFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	indexFactories[name] = factory
}

// Config selects the index backend and its persistence root.
type Config struct {
	Backend          string
	Path             string
	VectorDimensions int
}

// NewIndex creates the vector index for the configured backend,
// defaulting to "sqlite".
func NewIndex(cfg *Config) (VectorIndex, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = "sqlite"
	}

	factoriesMu.RLock()
	factory, ok := indexFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, mnemoerr.Errorf(mnemoerr.CodeIndexBackendUnsupported, "unsupported index backend: %q", backend)
	}

	dims := defaultVectorDimensions
	if cfg.VectorDimensions > 0 {
		dims = cfg.VectorDimensions
	}

	return factory(cfg.Path, dims)
}
