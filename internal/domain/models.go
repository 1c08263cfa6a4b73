package domain

// Mode selects the prompt template and the request fields it consumes.
type Mode string

const (
	ModePersona        Mode = "persona"
	ModeWish           Mode = "wish"
	ModeInterpretation Mode = "interpretation"
	ModeOutcome        Mode = "outcome"
	ModeReaction       Mode = "reaction"
)

// ParseMode resolves a raw mode string. The combined wish mode is only
// accepted when legacy is true.
func ParseMode(raw string, legacy bool) (Mode, error) {
	switch m := Mode(raw); m {
	case ModePersona, ModeInterpretation, ModeOutcome, ModeReaction:
		return m, nil
	case ModeWish:
		if legacy {
			return m, nil
		}
	}
	return "", ErrUnknownMode
}

// Persona is the character the caller threads between calls.
type Persona struct {
	Attribute   string `json:"attribute"`
	Personality string `json:"personality"`
	TrueWish    string `json:"true_wish"`
}

func (p Persona) empty() bool {
	return p.Attribute == "" && p.Personality == "" && p.TrueWish == ""
}

// WishRequest carries the caller-supplied fields for one generation.
type WishRequest struct {
	Mode           Mode
	Query          string
	Persona        Persona
	Interpretation string
	Outcome        string
}

// MissingFields lists the inputs the mode expects but the request left empty.
// Callers log these; the prompt is still built with empty values.
func (r WishRequest) MissingFields() []string {
	var missing []string
	need := func(name string, absent bool) {
		if absent {
			missing = append(missing, name)
		}
	}
	switch r.Mode {
	case ModeWish:
		need("query", r.Query == "")
		need("persona", r.Persona.empty())
	case ModeInterpretation:
		need("query", r.Query == "")
	case ModeOutcome:
		need("persona", r.Persona.empty())
		need("interpretation", r.Interpretation == "")
	case ModeReaction:
		need("persona", r.Persona.empty())
		need("outcome", r.Outcome == "")
	}
	return missing
}
