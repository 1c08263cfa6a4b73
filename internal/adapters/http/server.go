package http

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// NewServer builds the echo instance with middleware and routes installed.
func NewServer(h *Handler, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(logger)

	e.Use(RequestIDMiddleware())
	e.Use(LoggingMiddleware(logger))
	e.Use(middleware.Recover())

	h.Register(e)
	return e
}
