package providers

import (
	"context"
	"net/http"

	"github.com/Davincible/ai-gateway-go/internal/credential"
	"github.com/Davincible/ai-gateway-go/internal/processor"
	streampipe "github.com/Davincible/ai-gateway-go/internal/stream/pipeline"
	"github.com/Davincible/ai-gateway-go/internal/translator"
)

const (
	defaultAnthropicBase     = "https://api.anthropic.com"
	anthropicVersion         = "2023-06-01"
	defaultMessagesMaxTokens = 4096
)

// AnthropicUpstream targets the Anthropic Messages API.
type AnthropicUpstream struct {
	ProviderName string
	BaseURL      string
}

func NewAnthropicUpstream(name, baseURL string) *AnthropicUpstream {
	if baseURL == "" {
		baseURL = defaultAnthropicBase
	}
	return &AnthropicUpstream{ProviderName: name, BaseURL: baseURL}
}

func (u *AnthropicUpstream) Name() string {
	return u.ProviderName
}

func (u *AnthropicUpstream) Backend() streampipe.BackendKind {
	return streampipe.BackendAnthropic
}

func (u *AnthropicUpstream) BuildRequest(ctx context.Context, cred credential.Credential, rc *processor.RequestContext, payload map[string]any) (*http.Request, error) {
	var body any
	if frontendOf(rc) == processor.FrontendOpenAI {
		chatReq, err := translator.DecodePayload[translator.ChatRequest](payload)
		if err != nil {
			return nil, err
		}
		msgReq := translator.MessagesFromChat(chatReq)
		msgReq.Model = rc.Model
		msgReq.Stream = true
		body = msgReq
	} else {
		out := make(map[string]any, len(payload)+2)
		for k, v := range payload {
			out[k] = v
		}
		out["model"] = rc.Model
		out["stream"] = true
		if _, ok := out["max_tokens"]; !ok {
			out["max_tokens"] = defaultMessagesMaxTokens
		}
		body = out
	}

	url := baseURL(cred, u.BaseURL) + "/v1/messages"
	req, err := jsonRequest(ctx, url, body, cred)
	if err != nil {
		return nil, err
	}

	// Anthropic uses x-api-key rather than bearer auth.
	if cred.AccessToken != "" {
		req.Header.Del("Authorization")
		req.Header.Set("x-api-key", cred.AccessToken)
	}
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}
