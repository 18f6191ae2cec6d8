package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/ai-gateway-go/internal/config"
)

func testManager(t *testing.T) *config.Manager {
	t.Helper()
	dir := t.TempDir()
	content := `
api_key: secret
providers:
  - name: kiro
    kind: kiro
    credentials:
      - uuid: c1
        access_token: tok
routing:
  default: kiro
  rules:
    - pattern: "claude-*"
      target_provider: kiro
      enabled: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultConfigFilename), []byte(content), 0o600))
	m := config.NewManager(dir)
	_, err := m.Load()
	require.NoError(t, err)
	return m
}

func TestBuildRoutes(t *testing.T) {
	s := New(testManager(t), slog.Default())
	mux, err := s.build(s.config.Get())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "credential_pools")

	// Ingress requires the configured API key.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("{}"))
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuildRejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	content := `
providers:
  - name: p
    kind: ftp
    credentials: []
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultConfigFilename), []byte(content), 0o600))
	m := config.NewManager(dir)
	_, err := m.Load()
	require.NoError(t, err)

	s := New(m, slog.Default())
	_, err = s.build(s.config.Get())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown upstream kind")
}
