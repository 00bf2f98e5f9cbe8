// File: internal/infra/adapters/provider/gemini_provider.go
package provider

import (
	"context"
	"fmt"

	"github.com/imagerestore/controlplane/internal/domain/ports/adapter"

	"google.golang.org/genai"
)

var _ adapter.RestorationProvider = (*GeminiProvider)(nil)

// GeminiProvider is the fallback restoration collaborator, used when the
// primary provider errors or is unconfigured (spec.md §6 treats the
// generative provider as a single opaque collaborator; the cascading choice
// between concrete backends is this control plane's own addition).
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(client *genai.Client, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-2.5-flash-image"
	}
	return &GeminiProvider{client: client, model: model}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Restore(ctx context.Context, prompt string, image []byte) (adapter.RestoreResult, error) {
	parts := []*genai.Part{
		{Text: prompt},
		{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: image}},
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, []*genai.Content{{Role: genai.RoleUser, Parts: parts}}, nil)
	if err != nil {
		return adapter.RestoreResult{}, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return adapter.RestoreResult{}, fmt.Errorf("gemini provider: empty response")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			result := adapter.RestoreResult{Image: part.InlineData.Data}
			if resp.UsageMetadata != nil {
				result.BilledUnits = int64(resp.UsageMetadata.TotalTokenCount)
				result.EstimatedCost = float64(resp.UsageMetadata.TotalTokenCount) / 1_000_000 * 30.0
			}
			return result, nil
		}
	}
	return adapter.RestoreResult{}, fmt.Errorf("gemini provider: no image part in response")
}
