// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package embed_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-dev/mnemo/internal/embed"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// stubProvider is a scriptable primary provider for chain tests.
type stubProvider struct {
	name string
	dims int
	vec  []float32
	err  error
}

func (s *stubProvider) Name() string    { return s.name }
func (s *stubProvider) Dimensions() int { return s.dims }
func (s *stubProvider) Embed(_ context.Context, _ string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func TestFallback_Deterministic(t *testing.T) {
	f := embed.NewFallback(16)
	ctx := context.Background()

	first, err := f.Embed(ctx, "identical input text")
	require.NoError(t, err)
	second, err := f.Embed(ctx, "identical input text")
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical text must yield bit-identical vectors")
	assert.Len(t, first, 16)
}

func TestFallback_DistinctTextsDiffer(t *testing.T) {
	f := embed.NewFallback(16)
	ctx := context.Background()

	a, err := f.Embed(ctx, "first text")
	require.NoError(t, err)
	b, err := f.Embed(ctx, "second text")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestFallback_ValuesBounded(t *testing.T) {
	f := embed.NewFallback(16)

	vec, err := f.Embed(context.Background(), "any text at all")
	require.NoError(t, err)
	for i, v := range vec {
		assert.GreaterOrEqual(t, v, float32(-1), "dim %d", i)
		assert.LessOrEqual(t, v, float32(1), "dim %d", i)
	}
}

func TestFallback_CyclesToWiderDimensions(t *testing.T) {
	f := embed.NewFallback(40)

	vec, err := f.Embed(context.Background(), "cycled")
	require.NoError(t, err)
	require.Len(t, vec, 40)
	assert.Equal(t, vec[0], vec[16], "base values cycle past 16 dims")
	assert.Equal(t, vec[7], vec[23])
}

func TestFallback_DefaultDimensions(t *testing.T) {
	f := embed.NewFallback(0)
	assert.Equal(t, 16, f.Dimensions())
}

func TestChain_FallbackOnly(t *testing.T) {
	c := embed.NewChain(nil, 16, nil)

	res := c.Embed(context.Background(), "no primary configured")
	assert.Equal(t, embed.SourceFallback, res.Source)
	assert.Len(t, res.Vector, 16)
	assert.Equal(t, 16, c.Dimensions())
}

func TestChain_PrimarySuccess(t *testing.T) {
	primary := &stubProvider{
		name: "stub",
		dims: 4,
		vec:  []float32{0.1, 0.2, 0.3, 0.4},
	}
	c := embed.NewChain(primary, 16, nil)

	res := c.Embed(context.Background(), "hello")
	assert.Equal(t, embed.SourcePrimary, res.Source)
	assert.Equal(t, primary.vec, res.Vector)
	assert.Equal(t, 4, c.Dimensions(), "primary dimensionality wins over the configured width")
}

func TestChain_DegradesToFallbackOnError(t *testing.T) {
	primary := &stubProvider{
		name: "stub",
		dims: 8,
		err:  mnemoerr.New(mnemoerr.CodeProviderEmbedUpstreamFailure, "upstream down"),
	}
	c := embed.NewChain(primary, 16, nil)

	res := c.Embed(context.Background(), "hello")
	assert.Equal(t, embed.SourceFallback, res.Source)
	assert.Len(t, res.Vector, 8, "fallback vectors match the primary's width")

	// Degradation is per-call: the same chain keeps producing vectors.
	again := c.Embed(context.Background(), "hello")
	assert.Equal(t, res.Vector, again.Vector)
}

func TestChain_LogsToInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	primary := &stubProvider{
		name: "stub",
		dims: 8,
		err:  mnemoerr.New(mnemoerr.CodeProviderEmbedUpstreamFailure, "upstream down"),
	}
	c := embed.NewChain(primary, 16, logger)

	res := c.Embed(context.Background(), "hello")
	assert.Equal(t, embed.SourceFallback, res.Source)
	assert.Contains(t, buf.String(), "stub", "degradation is reported on the injected logger")
}
