// File: internal/infra/adapters/moderation/openai_moderation.go
package moderation

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/imagerestore/controlplane/internal/domain/ports/adapter"

	"github.com/openai/openai-go/v2"
)

var _ adapter.Moderator = (*OpenAIModerator)(nil)

// OpenAIModerator classifies the uploaded image (and any user-declared
// prompt) with OpenAI's omni-moderation model before admission continues.
// Per spec.md §4.1.6 the caller must treat an error here as "reject": this
// adapter never invents a permissive verdict on failure, it only ever
// returns an error and lets the admission use case fail closed.
type OpenAIModerator struct {
	client *openai.Client
}

func NewOpenAIModerator(client *openai.Client) *OpenAIModerator {
	return &OpenAIModerator{client: client}
}

func (m *OpenAIModerator) Moderate(ctx context.Context, image []byte, mctx adapter.ModerationContext) (adapter.ModerationResult, error) {
	dataURI := fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(image))

	inputs := []openai.ModerationMultiModalInputUnionParam{
		{OfImageURL: &openai.ModerationImageURLInputParam{ImageURL: openai.ModerationImageURLInputImageURLParam{URL: dataURI}}},
	}
	if mctx.Prompt != "" {
		inputs = append(inputs, openai.ModerationMultiModalInputUnionParam{
			OfText: &openai.ModerationTextInputParam{Text: mctx.Prompt},
		})
	}

	resp, err := m.client.Moderations.New(ctx, openai.ModerationNewParams{
		Model: openai.ModerationModelOmniModerationLatest,
		Input: openai.ModerationNewParamsInputUnion{OfModerationMultiModalArray: inputs},
	})
	if err != nil {
		return adapter.ModerationResult{}, err
	}
	if len(resp.Results) == 0 {
		return adapter.ModerationResult{}, fmt.Errorf("moderation: empty response")
	}

	result := resp.Results[0]
	if !result.Flagged {
		return adapter.ModerationResult{Allowed: true}, nil
	}

	var flags []string
	for category, flagged := range map[string]bool{
		"sexual":    result.Categories.Sexual,
		"violence":  result.Categories.Violence,
		"self-harm": result.Categories.SelfHarm,
		"hate":      result.Categories.Hate,
		"harassment": result.Categories.Harassment,
	} {
		if flagged {
			flags = append(flags, category)
		}
	}

	return adapter.ModerationResult{Allowed: false, Flags: flags, Rejection: "flagged by content moderation policy"}, nil
}
