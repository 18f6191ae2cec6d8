// Package providers implements the upstream protocols the gateway can route
// to: OpenAI-compatible, Anthropic, and the framed event-stream backend.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Davincible/ai-gateway-go/internal/credential"
	"github.com/Davincible/ai-gateway-go/internal/processor"
)

// jsonRequest builds a POST with a JSON body and bearer auth.
func jsonRequest(ctx context.Context, url string, body any, cred credential.Credential) (*http.Request, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if cred.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	}
	return req, nil
}

// baseURL prefers the credential's endpoint over the upstream default.
func baseURL(cred credential.Credential, fallback string) string {
	if cred.BaseURL != "" {
		return strings.TrimSuffix(cred.BaseURL, "/")
	}
	return strings.TrimSuffix(fallback, "/")
}

// scrubPayload removes fields the target protocol rejects, recursively.
func scrubPayload(data any, fields ...string) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			drop := false
			for _, field := range fields {
				if key == field {
					drop = true
					break
				}
			}
			if !drop {
				out[key] = scrubPayload(value, fields...)
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = scrubPayload(item, fields...)
		}
		return out
	default:
		return v
	}
}

func frontendOf(rc *processor.RequestContext) processor.Frontend {
	if rc == nil {
		return processor.FrontendOpenAI
	}
	return rc.Frontend
}
