package ports

import "time"

// Outcome labels recorded per relay call.
const (
	OutcomeOK            = "ok"
	OutcomeConfigError   = "config_error"
	OutcomeUnknownMode   = "unknown_mode"
	OutcomeUpstreamError = "upstream_error"
	OutcomeMalformed     = "malformed"
	OutcomeInternalError = "internal_error"
)

type Metrics interface {
	ObserveRelay(mode, outcome string, elapsed time.Duration)
}
