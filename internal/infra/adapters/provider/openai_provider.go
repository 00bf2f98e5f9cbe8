// File: internal/infra/adapters/provider/openai_provider.go
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/imagerestore/controlplane/internal/domain/ports/adapter"

	"github.com/openai/openai-go/v2"
)

var _ adapter.RestorationProvider = (*OpenAIProvider)(nil)

// OpenAIProvider restores an image via the images-edit endpoint, treating
// the enhanced prompt as the edit instruction and the source image as both
// the input and, per the API's contract, its own mask-free edit target.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(client *openai.Client, model string) *OpenAIProvider {
	if model == "" {
		model = "gpt-image-1"
	}
	return &OpenAIProvider{client: client, model: model}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Restore(ctx context.Context, prompt string, image []byte) (adapter.RestoreResult, error) {
	resp, err := p.client.Images.Edit(ctx, openai.ImageEditParams{
		Model:  openai.ImageModel(p.model),
		Prompt: prompt,
		Image: openai.ImageEditParamsImageUnion{
			OfFile: bytes.NewReader(image),
		},
		N: openai.Int(1),
	})
	if err != nil {
		return adapter.RestoreResult{}, err
	}
	if len(resp.Data) == 0 {
		return adapter.RestoreResult{}, fmt.Errorf("openai provider: empty image response")
	}

	restored, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return adapter.RestoreResult{}, fmt.Errorf("openai provider: decode image: %w", err)
	}

	return adapter.RestoreResult{
		Image:         restored,
		RequestID:     resp.ID,
		BilledUnits:   int64(resp.Usage.TotalTokens),
		EstimatedCost: estimateCost(resp.Usage.TotalTokens),
	}, nil
}

func estimateCost(totalTokens int64) float64 {
	const perMillionUSD = 40.0
	return float64(totalTokens) / 1_000_000 * perMillionUSD
}
