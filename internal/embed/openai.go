// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package embed

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// maxInputChars caps provider input to stay inside the embedding model
// context window. Longer text is truncated from the end.
const maxInputChars = 20000

// OpenAIConfig holds OpenAI embedding provider configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional, useful for testing against a mock server
}

// Compile-time interface check.
var _ Provider = (*OpenAI)(nil)

// OpenAI implements Provider using the OpenAI Embeddings API.
type OpenAI struct {
	client openaisdk.Client
	model  string
}

// NewOpenAI creates an OpenAI embedding provider. Returns an error if
// the API key is missing.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, mnemoerr.New(mnemoerr.CodeProviderNotFound, "openai: missing api_key in config")
	}
	if cfg.Model == "" {
		cfg.Model = string(openaisdk.EmbeddingModelTextEmbedding3Small)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{client: openaisdk.NewClient(opts...), model: cfg.Model}, nil
}

func (p *OpenAI) Name() string { return "openai" }

// Dimensions returns the embedding width for known OpenAI models.
func (p *OpenAI) Dimensions() int {
	switch p.model {
	case string(openaisdk.EmbeddingModelTextEmbedding3Large):
		return 3072
	case string(openaisdk.EmbeddingModelTextEmbedding3Small),
		string(openaisdk.EmbeddingModelTextEmbeddingAda002):
		return 1536
	default:
		return 1536
	}
}

// Embed generates an embedding for the given text.
func (p *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > maxInputChars {
		text = text[:maxInputChars]
	}

	resp, err := p.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
		Model: openaisdk.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, mnemoerr.Errorf(mnemoerr.CodeProviderEmbedUpstreamFailure, "openai: embedding request: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, mnemoerr.New(mnemoerr.CodeProviderEmbedInvalidResponse, "openai: no embedding returned")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}
