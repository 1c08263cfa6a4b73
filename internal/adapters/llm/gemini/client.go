package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/randomtoy/negai-go/internal/domain"
	"github.com/randomtoy/negai-go/internal/ports"
)

const responseMIMEType = "application/json"

// Client implements ports.Generator via the Gemini generateContent API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	model       string
	temperature *float64
	logger      *slog.Logger
}

// NewClient builds a client. A nil temperature leaves the field out of the
// request so the model default applies.
func NewClient(httpClient *http.Client, baseURL, model string, temperature *float64, logger *slog.Logger) *Client {
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMIMEType string   `json:"response_mime_type"`
	Temperature      *float64 `json:"temperature,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content *content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) Generate(ctx context.Context, in ports.GenerateInput) (ports.GenerateOutput, error) {
	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: in.Prompt}}}},
		GenerationConfig: generationConfig{
			ResponseMIMEType: responseMIMEType,
			Temperature:      c.temperature,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return ports.GenerateOutput{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(in.APIKey), bytes.NewReader(body))
	if err != nil {
		return ports.GenerateOutput{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.GenerateOutput{}, fmt.Errorf("http call: %w", redactKey(err, in.APIKey))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ports.GenerateOutput{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WarnContext(ctx, "generation endpoint returned error", "model", c.model, "status", resp.StatusCode)
		return ports.GenerateOutput{}, &domain.UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	text, err := candidateText(respBody)
	if err != nil {
		return ports.GenerateOutput{}, err
	}

	if !json.Valid([]byte(text)) {
		return ports.GenerateOutput{}, &domain.MalformedCompletionError{
			Reason: "AI response was not valid JSON",
			Raw:    []byte(text),
		}
	}

	return ports.GenerateOutput{JSON: json.RawMessage(text), Model: c.model}, nil
}

func (c *Client) endpoint(apiKey string) string {
	q := url.Values{}
	q.Set("key", apiKey)
	return fmt.Sprintf("%s/models/%s:generateContent?%s", c.baseURL, url.PathEscape(c.model), q.Encode())
}

// candidateText extracts candidates[0].content.parts[0].text.
func candidateText(body []byte) (string, error) {
	var gr generateResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", &domain.MalformedCompletionError{Reason: "AI response envelope was not valid JSON", Raw: body, Err: err}
	}
	if len(gr.Candidates) == 0 || gr.Candidates[0].Content == nil || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", &domain.MalformedCompletionError{Reason: "AI response had no candidate content", Raw: body}
	}
	text := strings.TrimSpace(gr.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", &domain.MalformedCompletionError{Reason: "AI response had no candidate content", Raw: body}
	}
	return text, nil
}

// redactKey strips the API key from transport errors, which quote the URL.
func redactKey(err error, apiKey string) error {
	var ue *url.Error
	if apiKey == "" || !errors.As(err, &ue) {
		return err
	}
	ue.URL = strings.ReplaceAll(ue.URL, apiKey, "REDACTED")
	return err
}
