// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

// Package embed turns text into fixed-length vectors. A configured
// provider (OpenAI) is the primary path; a deterministic hash-derived
// fallback guarantees that embedding never fails, so saves and
// retrievals stay available when the provider is down.
package embed

import "context"

// Source identifies which path produced an embedding.
type Source string

const (
	SourcePrimary  Source = "primary"
	SourceFallback Source = "fallback"
)

// Result is an embedding plus its provenance, so callers can
// distinguish "degraded to fallback" from "succeeded normally" without
// relying on logs.
type Result struct {
	Vector []float32
	Source Source
}

// Provider generates embeddings of a fixed, provider-defined
// dimensionality. Output must be stable for identical input within a
// provider instance.
type Provider interface {
	Name() string
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
}
