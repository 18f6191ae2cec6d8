package providers

import (
	"context"
	"net/http"

	"github.com/Davincible/ai-gateway-go/internal/credential"
	"github.com/Davincible/ai-gateway-go/internal/processor"
	streampipe "github.com/Davincible/ai-gateway-go/internal/stream/pipeline"
	"github.com/Davincible/ai-gateway-go/internal/translator"
)

const defaultKiroBase = "https://codewhisperer.us-east-1.amazonaws.com"

// KiroUpstream targets the CodeWhisperer generateAssistantResponse endpoint,
// which speaks the framed binary event stream. Both ingress protocols are
// translated to the conversation-state request shape.
type KiroUpstream struct {
	ProviderName string
	BaseURL      string
	ProfileARN   string

	openai    *translator.OpenAITranslator
	anthropic *translator.AnthropicTranslator
}

func NewKiroUpstream(name, baseURL, profileARN string) *KiroUpstream {
	if baseURL == "" {
		baseURL = defaultKiroBase
	}
	return &KiroUpstream{
		ProviderName: name,
		BaseURL:      baseURL,
		ProfileARN:   profileARN,
		openai:       translator.NewOpenAITranslator(profileARN),
		anthropic:    translator.NewAnthropicTranslator(profileARN),
	}
}

func (u *KiroUpstream) Name() string {
	return u.ProviderName
}

func (u *KiroUpstream) Backend() streampipe.BackendKind {
	return streampipe.BackendEventStream
}

func (u *KiroUpstream) BuildRequest(ctx context.Context, cred credential.Credential, rc *processor.RequestContext, payload map[string]any) (*http.Request, error) {
	var cwReq translator.CWRequest

	if frontendOf(rc) == processor.FrontendAnthropic {
		msgReq, err := translator.DecodePayload[translator.MessagesRequest](payload)
		if err != nil {
			return nil, err
		}
		msgReq.Model = rc.Model
		cwReq, err = u.anthropic.Translate(msgReq)
		if err != nil {
			return nil, err
		}
	} else {
		chatReq, err := translator.DecodePayload[translator.ChatRequest](payload)
		if err != nil {
			return nil, err
		}
		chatReq.Model = rc.Model
		cwReq, err = u.openai.Translate(chatReq)
		if err != nil {
			return nil, err
		}
	}

	url := baseURL(cred, u.BaseURL) + "/generateAssistantResponse"
	req, err := jsonRequest(ctx, url, cwReq, cred)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.amazon.eventstream")
	return req, nil
}

// BackendModel resolves the model id the event stream will report.
func (u *KiroUpstream) BackendModel(model string) string {
	return translator.MapModel(model)
}
