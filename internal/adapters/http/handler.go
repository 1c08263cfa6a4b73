package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/randomtoy/negai-go/internal/app"
	"github.com/randomtoy/negai-go/internal/domain"
)

const (
	headerModel = "X-Generation-Model"

	msgMissingKey = "API Key is missing in server settings."
)

type Handler struct {
	svc       *app.RelayService
	routePath string
	metrics   http.Handler
	logger    *slog.Logger
}

func NewHandler(svc *app.RelayService, routePath string, metrics http.Handler, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, routePath: routePath, metrics: metrics, logger: logger}
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}
	// Any, so every non-POST method gets the same 405 body.
	e.Any(h.routePath, h.Wish)
}

func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) Wish(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		h.logger.WarnContext(c.Request().Context(), "method not allowed",
			"request_id", c.Get(ctxRequestID), "method", c.Request().Method)
		c.Response().Header().Set(echo.HeaderAllow, http.MethodPost)
		return c.JSON(http.StatusMethodNotAllowed, ErrorResponse{Error: "Method Not Allowed"})
	}

	var body WishRequest
	if err := c.Bind(&body); err != nil {
		h.logger.WarnContext(c.Request().Context(), "invalid request body", "request_id", c.Get(ctxRequestID), "error", err)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	req := app.RelayRequest{
		Mode:           body.Mode,
		Query:          body.Query,
		Interpretation: body.Interpretation,
		Outcome:        body.Outcome,
	}
	if body.Persona != nil {
		req.Persona = *body.Persona
	}

	resp, err := h.svc.Relay(c.Request().Context(), req)
	if err != nil {
		return h.mapError(c, body.Mode, err)
	}

	if resp.Model != "" {
		c.Response().Header().Set(headerModel, resp.Model)
	}
	return c.JSONBlob(http.StatusOK, resp.Body)
}

func (h *Handler) mapError(c echo.Context, mode string, err error) error {
	requestID := c.Get(ctxRequestID)
	ctx := c.Request().Context()

	var (
		upstream  *domain.UpstreamError
		malformed *domain.MalformedCompletionError
	)
	switch {
	case errors.Is(err, domain.ErrMissingAPIKey):
		h.logger.ErrorContext(ctx, "api key not configured", "request_id", requestID, "mode", mode)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: msgMissingKey})
	case errors.Is(err, domain.ErrUnknownMode):
		h.logger.WarnContext(ctx, "unknown mode", "request_id", requestID, "mode", mode)
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.As(err, &upstream):
		h.logger.ErrorContext(ctx, "generation failed upstream", "request_id", requestID, "mode", mode,
			"status", upstream.StatusCode, "body", upstream.Body)
		return c.JSON(http.StatusInternalServerError, newUpstreamErrorResponse(upstream.Body))
	case errors.As(err, &malformed):
		h.logger.ErrorContext(ctx, "malformed generation", "request_id", requestID, "mode", mode,
			"error", err, "raw", string(malformed.Raw))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: malformed.Reason, Raw: rawPayload(malformed.Raw)})
	default:
		h.logger.ErrorContext(ctx, "internal error", "request_id", requestID, "mode", mode, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal Server Error", Details: err.Error()})
	}
}
