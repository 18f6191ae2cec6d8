package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a pipeline failure. The kind decides the HTTP status,
// the wire error type, and whether retry or credential failover applies.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindAuthentication
	KindRouting
	KindProvider
	KindRetriesExhausted
	KindTimeout
	KindStreamIdleTimeout
	KindPlugin
	KindInjection
	KindCredentialPool
	KindConfig
	KindCancelled
)

// statusClientClosedRequest is the nginx convention for a client that went
// away before the response completed.
const statusClientClosedRequest = 499

func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindRouting:
		return http.StatusNotFound
	case KindProvider:
		return http.StatusBadGateway
	case KindRetriesExhausted, KindCredentialPool:
		return http.StatusServiceUnavailable
	case KindTimeout, KindStreamIdleTimeout:
		return http.StatusRequestTimeout
	case KindInjection:
		return http.StatusBadRequest
	case KindCancelled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func (k ErrorKind) TypeString() string {
	switch k {
	case KindAuthentication:
		return "authentication_error"
	case KindRouting:
		return "routing_error"
	case KindProvider:
		return "provider_error"
	case KindRetriesExhausted:
		return "retries_exhausted"
	case KindTimeout:
		return "timeout_error"
	case KindStreamIdleTimeout:
		return "stream_idle_timeout"
	case KindPlugin:
		return "plugin_error"
	case KindInjection:
		return "injection_error"
	case KindCredentialPool:
		return "credential_pool_error"
	case KindConfig:
		return "config_error"
	case KindCancelled:
		return "cancelled"
	default:
		return "internal_error"
	}
}

// ProcessError is the error currency of the request pipeline. Every step
// failure surfaces as one, so handlers can map failures to responses without
// inspecting step internals.
type ProcessError struct {
	Kind    ErrorKind
	Step    string
	Message string
	Cause   error
}

func NewProcessError(kind ErrorKind, step, format string, args ...any) *ProcessError {
	return &ProcessError{
		Kind:    kind,
		Step:    step,
		Message: fmt.Sprintf(format, args...),
	}
}

func WrapProcessError(kind ErrorKind, step string, cause error) *ProcessError {
	return &ProcessError{
		Kind:    kind,
		Step:    step,
		Message: cause.Error(),
		Cause:   cause,
	}
}

func (e *ProcessError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind.TypeString(), e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind.TypeString(), e.Message)
}

func (e *ProcessError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the same provider may be tried again.
func (e *ProcessError) IsRetryable() bool {
	switch e.Kind {
	case KindProvider, KindTimeout, KindStreamIdleTimeout:
		return true
	default:
		return false
	}
}

// ShouldFailover reports whether a different credential (or provider) should
// be tried.
func (e *ProcessError) ShouldFailover() bool {
	switch e.Kind {
	case KindProvider, KindRetriesExhausted, KindCredentialPool:
		return true
	default:
		return false
	}
}

// ToJSON renders the OpenAI-style error envelope clients expect.
func (e *ProcessError) ToJSON() []byte {
	body := map[string]any{
		"error": map[string]any{
			"message": e.Message,
			"type":    e.Kind.TypeString(),
			"code":    e.Kind.HTTPStatus(),
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return []byte(`{"error":{"message":"internal error","type":"internal_error","code":500}}`)
	}
	return raw
}

// AsProcessError normalizes any error into a ProcessError, defaulting
// unknown errors to KindInternal.
func AsProcessError(err error) *ProcessError {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProcessError{Kind: KindInternal, Message: err.Error(), Cause: err}
}

// WriteError sends the error envelope on a response that has not started
// streaming yet.
func WriteError(w http.ResponseWriter, err error) {
	pe := AsProcessError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(pe.Kind.HTTPStatus())
	w.Write(pe.ToJSON())
}
