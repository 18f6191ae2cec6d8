package processor

import (
	"time"

	"github.com/google/uuid"

	"github.com/Davincible/ai-gateway-go/internal/stream"
)

// Frontend names the protocol the client spoke on the way in. It decides
// which generator renders the response stream.
type Frontend string

const (
	FrontendOpenAI    Frontend = "openai"
	FrontendAnthropic Frontend = "anthropic"
)

// RequestContext carries one request through the pipeline. Steps read and
// mutate it in order; the payload is the decoded request body.
type RequestContext struct {
	RequestID string
	Frontend  Frontend
	StartedAt time.Time

	// Set by ingress, possibly rewritten by routing.
	Model         string
	ForceProvider string
	ClientKey     string

	// Set by the routing step.
	Provider     string
	ResolvedRule string

	// Set by the provider step.
	Result       *UpstreamResult
	CredentialID string
	Retries      int
	Switches     int
	Usage        stream.TokenUsage
	Status       int
	Streamed     bool

	// Set by the injection step.
	InjectedParams []string

	// Free-form carrier for plugin steps.
	Metadata map[string]any
}

// NewRequestContext starts a context for an inbound request.
func NewRequestContext(frontend Frontend, model string) *RequestContext {
	return &RequestContext{
		RequestID: uuid.NewString(),
		Frontend:  frontend,
		StartedAt: time.Now(),
		Model:     model,
		Metadata:  make(map[string]any),
	}
}

// Elapsed reports how long the request has been in flight.
func (c *RequestContext) Elapsed() time.Duration {
	return time.Since(c.StartedAt)
}
