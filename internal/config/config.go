package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"`
	RawLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	RoutePath string `envconfig:"ROUTE_PATH" default:"/api/wish"`

	GeminiBaseURL string        `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta"`
	GeminiModel   string        `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
	LLMTimeout    time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`

	// RawTemperature set to the empty string leaves temperature out of the
	// request so the model default applies.
	RawTemperature string `envconfig:"GEMINI_TEMPERATURE" default:"0.9"`

	// LegacyWishMode re-enables the combined "wish" mode.
	LegacyWishMode bool `envconfig:"LEGACY_WISH_MODE" default:"false"`

	// APIKeyEnv names the variable holding the upstream key. The key itself
	// is read per request through EnvCredential, never stored here.
	APIKeyEnv string `envconfig:"API_KEY_ENV" default:"GEMINI_API_KEY"`

	LogLevel          slog.Level `ignored:"true"`
	GeminiTemperature *float64   `ignored:"true"`
}

func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}

	level, err := parseLogLevel(c.RawLevel)
	if err != nil {
		return Config{}, err
	}
	c.LogLevel = level

	temperature, err := parseTemperature(c.RawTemperature)
	if err != nil {
		return Config{}, err
	}
	c.GeminiTemperature = temperature

	if !strings.HasPrefix(c.RoutePath, "/") {
		return Config{}, fmt.Errorf("invalid ROUTE_PATH %q: must start with /", c.RoutePath)
	}
	if c.APIKeyEnv == "" {
		return Config{}, fmt.Errorf("API_KEY_ENV must not be empty")
	}

	return c, nil
}

// EnvCredential reads the API key from the environment on every call.
type EnvCredential struct {
	Name string
}

func (e EnvCredential) APIKey() string {
	return strings.TrimSpace(os.Getenv(e.Name))
}

func parseTemperature(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := strconv.ParseFloat(s, 64)
	if err != nil || t < 0 || t > 2 {
		return nil, fmt.Errorf("invalid GEMINI_TEMPERATURE %q: want a number in [0, 2]", s)
	}
	return &t, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
}
