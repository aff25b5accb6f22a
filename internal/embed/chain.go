// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package embed

import (
	"context"
	"log/slog"
)

// Chain is the total embed operation: try the primary provider, degrade
// to the deterministic fallback on any failure. Chain.Embed never
// returns an error; the Result reports which path ran.
type Chain struct {
	primary  Provider
	fallback *Fallback
	logger   *slog.Logger
}

// NewChain creates a chain over an optional primary provider. When
// primary is nil the fallback is the only path. dimensions fixes the
// vector width the fallback must produce; when a primary is present its
// own dimensionality wins so index and provider stay consistent. A nil
// logger defaults to slog.Default.
func NewChain(primary Provider, dimensions int, logger *slog.Logger) *Chain {
	if primary != nil {
		dimensions = primary.Dimensions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		primary:  primary,
		fallback: NewFallback(dimensions),
		logger:   logger,
	}
}

// Dimensions returns the vector width every Embed result has.
func (c *Chain) Dimensions() int {
	if c.primary != nil {
		return c.primary.Dimensions()
	}
	return c.fallback.Dimensions()
}

// Embed returns an embedding for text. Provider errors are logged and
// recovered via the fallback; the returned Source tells the caller
// which path produced the vector.
func (c *Chain) Embed(ctx context.Context, text string) Result {
	if c.primary != nil {
		vec, err := c.primary.Embed(ctx, text)
		if err == nil {
			return Result{Vector: vec, Source: SourcePrimary}
		}
		c.logger.WarnContext(ctx, "embedding provider failed, using fallback",
			"provider", c.primary.Name(),
			"error", err,
		)
	}

	vec, _ := c.fallback.Embed(ctx, text)
	return Result{Vector: vec, Source: SourceFallback}
}
