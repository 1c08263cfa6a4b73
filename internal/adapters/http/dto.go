package http

import (
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"

	"github.com/randomtoy/negai-go/internal/domain"
)

// WishRequest is the JSON body accepted by the relay endpoint.
type WishRequest struct {
	Mode           string          `json:"mode"`
	Query          string          `json:"query,omitempty"`
	Persona        *domain.Persona `json:"persona,omitempty"`
	Interpretation string          `json:"interpretation,omitempty"`
	Outcome        string          `json:"outcome,omitempty"`
}

// ErrorResponse is the body of every non-200 answer. Details carries the
// upstream or runtime message; Raw carries the payload that failed to parse.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Raw     any    `json:"raw,omitempty"`
}

// UpstreamErrorResponse is returned when the generation endpoint fails.
// Details is always present, even when the upstream body was empty. Bodies
// that are not valid UTF-8 are base64-encoded and flagged in DetailsEncoding.
type UpstreamErrorResponse struct {
	Error           string `json:"error"`
	Details         string `json:"details"`
	DetailsEncoding string `json:"details_encoding,omitempty"`
}

func newUpstreamErrorResponse(body string) UpstreamErrorResponse {
	resp := UpstreamErrorResponse{Error: "AI generation failed", Details: body}
	if !utf8.ValidString(body) {
		resp.Details = base64.StdEncoding.EncodeToString([]byte(body))
		resp.DetailsEncoding = "base64"
	}
	return resp
}

// rawPayload embeds raw as JSON when it parses, otherwise as a string.
func rawPayload(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	return string(raw)
}
