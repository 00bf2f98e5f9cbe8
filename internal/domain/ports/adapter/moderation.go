package adapter

import "context"

// ModerationResult is the frozen verdict from the classifier collaborator.
type ModerationResult struct {
	Allowed    bool
	Flags      []string
	Rejection  string
}

// ModerationContext carries the metadata the moderation service may use to
// score the image (owner id, declared prompt) without changing its contract shape.
type ModerationContext struct {
	OwnerID string
	Prompt  string
}

// Moderator is the out-of-scope content-moderation collaborator (spec.md §6).
// Callers must fail closed: a Moderator error is treated as a reject verdict.
type Moderator interface {
	Moderate(ctx context.Context, image []byte, mctx ModerationContext) (ModerationResult, error)
}
