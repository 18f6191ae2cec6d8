package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindStatuses(t *testing.T) {
	cases := map[ErrorKind]int{
		KindAuthentication:    401,
		KindRouting:           404,
		KindProvider:          502,
		KindRetriesExhausted:  503,
		KindCredentialPool:    503,
		KindTimeout:           408,
		KindStreamIdleTimeout: 408,
		KindInjection:         400,
		KindPlugin:            500,
		KindConfig:            500,
		KindInternal:          500,
		KindCancelled:         499,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus(), kind.TypeString())
	}
}

func TestProcessErrorRetryAndFailover(t *testing.T) {
	retryable := []ErrorKind{KindProvider, KindTimeout, KindStreamIdleTimeout}
	for _, kind := range retryable {
		assert.True(t, (&ProcessError{Kind: kind}).IsRetryable(), kind.TypeString())
	}
	assert.False(t, (&ProcessError{Kind: KindAuthentication}).IsRetryable())
	assert.False(t, (&ProcessError{Kind: KindRouting}).IsRetryable())

	failover := []ErrorKind{KindProvider, KindRetriesExhausted, KindCredentialPool}
	for _, kind := range failover {
		assert.True(t, (&ProcessError{Kind: kind}).ShouldFailover(), kind.TypeString())
	}
	assert.False(t, (&ProcessError{Kind: KindAuthentication}).ShouldFailover())
	assert.False(t, (&ProcessError{Kind: KindTimeout}).ShouldFailover())
}

func TestProcessErrorJSON(t *testing.T) {
	pe := NewProcessError(KindRouting, "routing", "no provider for model %q", "x")

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(pe.ToJSON(), &body))
	assert.Equal(t, `no provider for model "x"`, body["error"]["message"])
	assert.Equal(t, "routing_error", body["error"]["type"])
	assert.Equal(t, float64(404), body["error"]["code"])
}

func TestProcessErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	pe := WrapProcessError(KindProvider, "provider", cause)
	assert.ErrorIs(t, pe, cause)
	assert.Contains(t, pe.Error(), "provider_error")
	assert.Contains(t, pe.Error(), "boom")
}

func TestAsProcessErrorNormalizes(t *testing.T) {
	pe := AsProcessError(errors.New("plain"))
	assert.Equal(t, KindInternal, pe.Kind)

	orig := NewProcessError(KindTimeout, "provider", "slow")
	assert.Same(t, orig, AsProcessError(fmt.Errorf("wrapped: %w", orig)))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, NewProcessError(KindAuthentication, "auth", "invalid API key"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "authentication_error")
}
