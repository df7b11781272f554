package llm

import (
	"errors"
	"fmt"
	"time"
)

// ConfigurationError means the adapter cannot work at all: missing
// credentials, no usable model left, unreachable local endpoint.
// Fatal for the adapter, never for the orchestrator while another
// adapter is usable.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("provider %s not usable: %s", e.Provider, e.Reason)
}

// TransientError is the 429/503/529 class: the model works, the service
// is temporarily unwilling. Recovered by exponential backoff, never by
// model fallback.
type TransientError struct {
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider error (status %d): %v", e.Status, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ModelUnavailableError is the 404 class: this model does not exist or
// is not served. Recovered by advancing the model cursor.
type ModelUnavailableError struct {
	Model string
	Err   error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %q not available: %v", e.Model, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// ProviderError is a terminal vendor failure after retries and
// fallbacks are exhausted.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ParseError is irrecoverably malformed JSON from the vendor, surfaced
// with a context window around the failure position for debugging.
type ParseError struct {
	Offset  int64
	Context string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("unparseable model output at offset %d: %v\nnear: %s", e.Offset, e.Err, e.Context)
	}
	return fmt.Sprintf("unparseable model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Remediation returns a user-facing hint for the known error classes,
// or "" when there is nothing actionable to suggest.
func Remediation(err error) string {
	var tr *TransientError
	if errors.As(err, &tr) {
		switch tr.Status {
		case 429:
			return "rate limited: try again later or upgrade your plan"
		case 503, 529:
			return "service overloaded: try again in a few minutes"
		}
		return "temporary provider failure: try again shortly"
	}
	var cfg *ConfigurationError
	if errors.As(err, &cfg) {
		return "check the provider's API key and model configuration"
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return "the model returned malformed output; retrying usually helps"
	}
	return ""
}

// transientStatus reports whether an HTTP status belongs to the
// backoff-recoverable class.
func transientStatus(status int) bool {
	return status == 429 || status == 503 || status == 529
}
