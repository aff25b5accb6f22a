// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package main

import (
	"log/slog"

	"github.com/spf13/viper"

	"github.com/mnemo-dev/mnemo/internal/config"
	"github.com/mnemo-dev/mnemo/internal/embed"
	"github.com/mnemo-dev/mnemo/internal/memory"
	"github.com/mnemo-dev/mnemo/internal/store"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"

	// Register the sqlite vector index backend.
	_ "github.com/mnemo-dev/mnemo/internal/store/sqlite"
)

// app bundles the wired subsystems for a single CLI invocation.
type app struct {
	cfg     *config.Config
	index   store.VectorIndex
	service *memory.Service
}

// wireApp builds the memory service and its dependencies from the
// resolved configuration. On partial failure everything already opened
// is closed before the error is returned.
func wireApp() (*app, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}

	var primary embed.Provider
	if cfg.Embedding.Provider == "openai" {
		primary, err = embed.NewOpenAI(embed.OpenAIConfig{
			APIKey:  cfg.Embedding.APIKey,
			Model:   cfg.Embedding.Model,
			BaseURL: cfg.Embedding.Endpoint,
		})
		if err != nil {
			return nil, err
		}
	}
	chain := embed.NewChain(primary, cfg.Storage.VectorDimensions, slog.Default())

	// The index is sized off the embedding chain so a remote provider's
	// native dimensionality always matches the stored vectors.
	index, err := store.NewIndex(&store.Config{
		Backend:          cfg.Storage.Backend,
		Path:             cfg.Storage.Path,
		VectorDimensions: chain.Dimensions(),
	})
	if err != nil {
		return nil, err
	}

	service := memory.NewService(memory.ServiceConfig{
		Index:       index,
		Embedder:    chain,
		StoragePath: cfg.Storage.Path,
		Limits: memory.Limits{
			MaxDocuments:        cfg.Maintenance.MaxDocuments,
			MaxSizeMB:           cfg.Maintenance.MaxSizeMB,
			CompactionMaxSizeMB: cfg.Compaction.MaxSizeMB,
			StalenessDays:       cfg.Compaction.StalenessDays,
			RetrievalK:          cfg.Retrieval.K,
			ScoreThreshold:      cfg.Retrieval.ScoreThreshold,
		},
		Logger: slog.Default(),
	})

	return &app{cfg: cfg, index: index, service: service}, nil
}

// Close releases the app's resources.
func (a *app) Close() error {
	if a.index == nil {
		return nil
	}
	if err := a.index.Close(); err != nil {
		return mnemoerr.Wrap(err, mnemoerr.CodeCLISetupFailure, "closing vector index")
	}
	return nil
}
