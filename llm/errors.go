package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go"
)

// Kind classifies invoker failures so boundary middleware can decide on retries.
type Kind string

const (
	KindAuth          Kind = "auth"
	KindRateLimit     Kind = "rate_limit"
	KindTransient     Kind = "transient"
	KindEmptyResponse Kind = "empty_response"
	KindBadRequest    Kind = "bad_request"
	KindCanceled      Kind = "canceled"
	KindUnknown       Kind = "unknown"
)

// Retryable reports whether a failure of this kind may succeed on a later attempt.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimit, KindTransient, KindEmptyResponse:
		return true
	default:
		return false
	}
}

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Error is a classified invoker failure.
type Error struct {
	Kind     Kind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("llm %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify maps provider SDK errors onto a Kind. Already classified errors keep
// their kind.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	if errors.Is(err, ErrEmptyResponse) {
		return KindEmptyResponse
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return kindForStatus(oaErr.StatusCode)
	}
	var anErr *anthropic.Error
	if errors.As(err, &anErr) {
		return kindForStatus(anErr.StatusCode)
	}
	var olErr api.StatusError
	if errors.As(err, &olErr) {
		return kindForStatus(olErr.StatusCode)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"),
		strings.Contains(msg, "unauthorized"), strings.Contains(msg, "api key"):
		return KindAuth
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "quota"):
		return KindRateLimit
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "connection"),
		strings.Contains(msg, "eof"), strings.Contains(msg, "503"), strings.Contains(msg, "502"):
		return KindTransient
	default:
		return KindUnknown
	}
}

func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code >= 500:
		return KindTransient
	case code >= 400:
		return KindBadRequest
	default:
		return KindUnknown
	}
}

func wrapProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: Classify(err), Provider: provider, Err: err}
}
