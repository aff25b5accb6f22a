// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package embed

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"math"
)

// fallbackBaseDims is the number of dimensions the hash expansion
// yields before cycling: 8 digest words by sin and cos each.
const fallbackBaseDims = 16

// Compile-time interface check.
var _ Provider = (*Fallback)(nil)

// Fallback derives embeddings deterministically from a cryptographic
// hash of the text. It carries no semantic signal, but identical text
// always yields bit-identical vectors, which keeps retrieval exact-match
// capable and reproducible when the primary provider is unavailable.
type Fallback struct {
	dimensions int
}

// NewFallback creates a fallback embedder producing vectors of the
// given dimensionality. dimensions <= 0 defaults to the 16 base dims.
func NewFallback(dimensions int) *Fallback {
	if dimensions <= 0 {
		dimensions = fallbackBaseDims
	}
	return &Fallback{dimensions: dimensions}
}

func (f *Fallback) Name() string { return "fallback" }

func (f *Fallback) Dimensions() int { return f.dimensions }

// Embed expands the MD5 digest of text into a vector: the 16-byte
// digest is read as 8 unsigned 16-bit words, each word modulo 10000
// fed through sin and cos for two dimensions. The 16 base values are
// cycled to fill the configured dimensionality. Pure function of the
// input; never fails.
func (f *Fallback) Embed(_ context.Context, text string) ([]float32, error) {
	digest := md5.Sum([]byte(text))

	base := make([]float32, 0, fallbackBaseDims)
	for i := 0; i < len(digest); i += 2 {
		word := binary.BigEndian.Uint16(digest[i : i+2])
		v := float64(word % 10000)
		base = append(base, float32(math.Sin(v)), float32(math.Cos(v)))
	}

	vec := make([]float32, f.dimensions)
	for i := range vec {
		vec[i] = base[i%fallbackBaseDims]
	}
	return vec, nil
}
