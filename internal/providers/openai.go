package providers

import (
	"context"
	"net/http"

	"github.com/Davincible/ai-gateway-go/internal/credential"
	"github.com/Davincible/ai-gateway-go/internal/processor"
	streampipe "github.com/Davincible/ai-gateway-go/internal/stream/pipeline"
	"github.com/Davincible/ai-gateway-go/internal/translator"
)

const defaultOpenAIBase = "https://api.openai.com/v1"

// OpenAIUpstream targets any OpenAI-compatible chat completions endpoint
// (OpenAI, OpenRouter, NVIDIA, local inference servers). The name is the
// configured provider name, so several instances with different base URLs
// can coexist.
type OpenAIUpstream struct {
	ProviderName string
	BaseURL      string
}

func NewOpenAIUpstream(name, baseURL string) *OpenAIUpstream {
	if baseURL == "" {
		baseURL = defaultOpenAIBase
	}
	return &OpenAIUpstream{ProviderName: name, BaseURL: baseURL}
}

func (u *OpenAIUpstream) Name() string {
	return u.ProviderName
}

func (u *OpenAIUpstream) Backend() streampipe.BackendKind {
	return streampipe.BackendOpenAI
}

func (u *OpenAIUpstream) BuildRequest(ctx context.Context, cred credential.Credential, rc *processor.RequestContext, payload map[string]any) (*http.Request, error) {
	var body any
	if frontendOf(rc) == processor.FrontendAnthropic {
		msgReq, err := translator.DecodePayload[translator.MessagesRequest](payload)
		if err != nil {
			return nil, err
		}
		chatReq := translator.ChatFromMessages(msgReq)
		chatReq.Model = rc.Model
		chatReq.Stream = true
		body = chatReq
	} else {
		scrubbed := scrubPayload(payload, "cache_control").(map[string]any)
		scrubbed["model"] = rc.Model
		scrubbed["stream"] = true
		scrubbed["stream_options"] = map[string]any{"include_usage": true}
		body = scrubbed
	}

	url := baseURL(cred, u.BaseURL) + "/chat/completions"
	return jsonRequest(ctx, url, body, cred)
}
