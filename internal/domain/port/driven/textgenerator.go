package driven

import (
	"context"
	"errors"
)

// ErrEmptyCompletion is returned when the AI collaborator answers with no text.
var ErrEmptyCompletion = errors.New("text generator returned no content")

// GenerationParams tunes a text generation call. Nil fields use the backend default.
type GenerationParams struct {
	Temperature *float32
	TopP        *float32
	TopK        *int
	MaxTokens   *int
}

// Prompt is one request to the AI collaborator. System is optional.
type Prompt struct {
	System string
	User   string
}

//go:generate mockgen -source=textgenerator.go -destination=mocks/mock_textgenerator.go -package=mocks

// TextGenerator is the port to the AI text-generation collaborator. The reply
// is free-form text with no format guarantee.
type TextGenerator interface {
	Generate(ctx context.Context, prompt Prompt, params GenerationParams) (string, error)
}
