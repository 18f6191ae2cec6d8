package processor

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/Davincible/ai-gateway-go/internal/injection"
	"github.com/Davincible/ai-gateway-go/internal/router"
	"github.com/Davincible/ai-gateway-go/internal/telemetry"
)

// AuthStep validates the client API key. An empty configured key disables
// the step entirely.
type AuthStep struct {
	Key string
}

func (s *AuthStep) Name() string  { return "auth" }
func (s *AuthStep) Enabled() bool { return s.Key != "" }

func (s *AuthStep) Execute(_ context.Context, rc *RequestContext, _ map[string]any) error {
	provided := rc.ClientKey
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.Key)) != 1 {
		return NewProcessError(KindAuthentication, s.Name(), "invalid API key")
	}
	return nil
}

// InjectionStep applies configured parameter injection rules to the request
// payload before routing.
type InjectionStep struct {
	Injector *injection.Injector
}

func (s *InjectionStep) Name() string  { return "injection" }
func (s *InjectionStep) Enabled() bool { return s.Injector != nil }

func (s *InjectionStep) Execute(_ context.Context, rc *RequestContext, payload map[string]any) error {
	if payload == nil {
		return NewProcessError(KindInjection, s.Name(), "no request payload")
	}
	result := s.Injector.Apply(rc.Model, payload)
	rc.InjectedParams = result.InjectedParams
	return nil
}

// RoutingStep resolves model aliases and picks the target provider.
type RoutingStep struct {
	Router *router.Router
	Mapper *router.ModelMapper
}

func (s *RoutingStep) Name() string  { return "routing" }
func (s *RoutingStep) Enabled() bool { return s.Router != nil }

func (s *RoutingStep) Execute(_ context.Context, rc *RequestContext, payload map[string]any) error {
	if s.Mapper != nil {
		resolved := s.Mapper.Resolve(rc.Model)
		if resolved != rc.Model {
			rc.Model = resolved
			if payload != nil {
				payload["model"] = resolved
			}
		}
	}

	if rc.ForceProvider != "" {
		rc.Provider = rc.ForceProvider
		rc.ResolvedRule = "(forced)"
		return nil
	}

	decision := s.Router.Route(rc.Model)
	if decision.Provider == "" {
		return NewProcessError(KindRouting, s.Name(), "no provider for model %q", rc.Model)
	}
	rc.Provider = decision.Provider
	if decision.MatchedRule != nil {
		rc.ResolvedRule = decision.MatchedRule.Pattern
	}
	return nil
}

// Hook is a plugin callback run at a fixed point in the pipeline.
type Hook func(ctx context.Context, rc *RequestContext, payload map[string]any) error

// PluginStep runs a named hook. Hook failures never abort the request.
type PluginStep struct {
	HookName string
	Fn       Hook
}

func (s *PluginStep) Name() string     { return fmt.Sprintf("plugin:%s", s.HookName) }
func (s *PluginStep) Enabled() bool    { return s.Fn != nil }
func (s *PluginStep) BestEffort() bool { return true }

func (s *PluginStep) Execute(ctx context.Context, rc *RequestContext, payload map[string]any) error {
	if err := s.Fn(ctx, rc, payload); err != nil {
		return WrapProcessError(KindPlugin, s.Name(), err)
	}
	return nil
}

// TelemetryStep records the completed request. It runs last and never
// aborts the request.
type TelemetryStep struct {
	Stats *telemetry.Stats

	// Counter estimates input tokens when the upstream reports no usage.
	Counter *telemetry.TokenCounter
}

func (s *TelemetryStep) Name() string     { return "telemetry" }
func (s *TelemetryStep) Enabled() bool    { return s.Stats != nil }
func (s *TelemetryStep) BestEffort() bool { return true }

func (s *TelemetryStep) Execute(_ context.Context, rc *RequestContext, payload map[string]any) error {
	status := rc.Status
	if status == 0 {
		status = http.StatusOK
	}
	if rc.Usage.InputTokens == 0 && s.Counter != nil {
		if n, err := s.Counter.CountAll(messageTexts(payload)); err == nil {
			rc.Usage.InputTokens = n
		}
	}
	s.Stats.Record(telemetry.RequestLog{
		RequestID:    rc.RequestID,
		Provider:     rc.Provider,
		Model:        rc.Model,
		CredentialID: rc.CredentialID,
		Status:       status,
		Streamed:     rc.Streamed,
		Retries:      rc.Retries,
		InputTokens:  rc.Usage.InputTokens,
		OutputTokens: rc.Usage.OutputTokens,
		Duration:     rc.Elapsed(),
		At:           rc.StartedAt,
	})
	return nil
}

// messageTexts pulls the plain text parts out of a chat payload for token
// estimation. Structured content blocks contribute their text fields only.
func messageTexts(payload map[string]any) []string {
	messages, _ := payload["messages"].([]any)
	texts := make([]string, 0, len(messages))
	for _, m := range messages {
		msg, ok := m.(map[string]any)
		if !ok {
			continue
		}
		switch content := msg["content"].(type) {
		case string:
			texts = append(texts, content)
		case []any:
			for _, part := range content {
				if block, ok := part.(map[string]any); ok {
					if text, ok := block["text"].(string); ok {
						texts = append(texts, text)
					}
				}
			}
		}
	}
	return texts
}
