package prompts

import (
	"embed"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/randomtoy/negai-go/internal/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// registry maps each mode to its template file inside templates/.
var registry = map[domain.Mode]string{
	domain.ModePersona:        "templates/persona.tmpl",
	domain.ModeWish:           "templates/wish.tmpl",
	domain.ModeInterpretation: "templates/interpretation.tmpl",
	domain.ModeOutcome:        "templates/outcome.tmpl",
	domain.ModeReaction:       "templates/reaction.tmpl",
}

// EmbeddedStore renders prompts from the embedded templates. Values are
// substituted as plain text; nothing is escaped.
type EmbeddedStore struct {
	once      sync.Once
	templates map[domain.Mode]*template.Template
	err       error
}

func NewEmbeddedStore() *EmbeddedStore {
	return &EmbeddedStore{}
}

func (s *EmbeddedStore) init() {
	s.templates = make(map[domain.Mode]*template.Template, len(registry))
	for mode, filename := range registry {
		raw, err := templateFS.ReadFile(filename)
		if err != nil {
			s.err = fmt.Errorf("read embedded template %s: %w", mode, err)
			return
		}
		tmpl, err := template.New(string(mode)).Parse(string(raw))
		if err != nil {
			s.err = fmt.Errorf("parse embedded template %s: %w", mode, err)
			return
		}
		s.templates[mode] = tmpl
	}
}

// Build renders the template registered for req.Mode.
func (s *EmbeddedStore) Build(req domain.WishRequest) (string, error) {
	s.once.Do(s.init)
	if s.err != nil {
		return "", s.err
	}
	tmpl, ok := s.templates[req.Mode]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownMode, req.Mode)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, req); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", req.Mode, err)
	}
	return strings.TrimSpace(b.String()), nil
}
