package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randomtoy/negai-go/internal/domain"
	"github.com/randomtoy/negai-go/internal/ports"
)

// RelayRequest is the application-level input (no HTTP types).
type RelayRequest struct {
	Mode           string
	Query          string
	Persona        domain.Persona
	Interpretation string
	Outcome        string
}

// RelayResponse is the application-level output.
type RelayResponse struct {
	Mode      domain.Mode
	Body      json.RawMessage
	Model     string
	LatencyMS int64
}

// RelayService turns a mode request into exactly one generation call.
type RelayService struct {
	prompts     ports.PromptBuilder
	generator   ports.Generator
	credentials ports.CredentialSource
	metrics     ports.Metrics
	logger      *slog.Logger
	legacyWish  bool
}

func NewRelayService(pb ports.PromptBuilder, gen ports.Generator, creds ports.CredentialSource, m ports.Metrics, logger *slog.Logger, legacyWish bool) *RelayService {
	return &RelayService{
		prompts:     pb,
		generator:   gen,
		credentials: creds,
		metrics:     m,
		logger:      logger,
		legacyWish:  legacyWish,
	}
}

func (s *RelayService) Relay(ctx context.Context, req RelayRequest) (resp RelayResponse, err error) {
	start := time.Now()
	modeLabel := "unknown"
	defer func() {
		s.metrics.ObserveRelay(modeLabel, outcomeOf(err), time.Since(start))
	}()

	mode, modeErr := domain.ParseMode(req.Mode, s.legacyWish)
	if modeErr == nil {
		modeLabel = string(mode)
	}

	// The key is looked up per call; no network traffic without it.
	apiKey := s.credentials.APIKey()
	if apiKey == "" {
		return RelayResponse{}, domain.ErrMissingAPIKey
	}
	if modeErr != nil {
		return RelayResponse{}, fmt.Errorf("%w: %s", modeErr, req.Mode)
	}

	wr := domain.WishRequest{
		Mode:           mode,
		Query:          req.Query,
		Persona:        req.Persona,
		Interpretation: req.Interpretation,
		Outcome:        req.Outcome,
	}
	if missing := wr.MissingFields(); len(missing) > 0 {
		s.logger.WarnContext(ctx, "request is missing fields for mode", "mode", mode, "missing", missing)
	}

	prompt, err := s.prompts.Build(wr)
	if err != nil {
		return RelayResponse{}, fmt.Errorf("build prompt: %w", err)
	}

	callStart := time.Now()
	out, err := s.generator.Generate(ctx, ports.GenerateInput{APIKey: apiKey, Prompt: prompt})
	latency := time.Since(callStart).Milliseconds()
	if err != nil {
		return RelayResponse{}, fmt.Errorf("generate: %w", err)
	}

	return RelayResponse{
		Mode:      mode,
		Body:      out.JSON,
		Model:     out.Model,
		LatencyMS: latency,
	}, nil
}

func outcomeOf(err error) string {
	var (
		upstream  *domain.UpstreamError
		malformed *domain.MalformedCompletionError
	)
	switch {
	case err == nil:
		return ports.OutcomeOK
	case errors.Is(err, domain.ErrMissingAPIKey):
		return ports.OutcomeConfigError
	case errors.Is(err, domain.ErrUnknownMode):
		return ports.OutcomeUnknownMode
	case errors.As(err, &upstream):
		return ports.OutcomeUpstreamError
	case errors.As(err, &malformed):
		return ports.OutcomeMalformed
	default:
		return ports.OutcomeInternalError
	}
}
