package ports

import (
	"context"
	"encoding/json"
)

// GenerateInput is one outbound completion request.
type GenerateInput struct {
	APIKey string
	Prompt string
}

// GenerateOutput is the candidate JSON as returned by the model.
type GenerateOutput struct {
	JSON  json.RawMessage
	Model string
}

// Generator produces a JSON completion for a prompt via an LLM.
type Generator interface {
	Generate(ctx context.Context, in GenerateInput) (GenerateOutput, error)
}
