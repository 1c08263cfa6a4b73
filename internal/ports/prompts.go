package ports

import "github.com/randomtoy/negai-go/internal/domain"

// PromptBuilder renders the prompt text for a request's mode.
type PromptBuilder interface {
	Build(req domain.WishRequest) (string, error)
}

// CredentialSource yields the upstream API key. An empty string means the
// key is not configured.
type CredentialSource interface {
	APIKey() string
}
