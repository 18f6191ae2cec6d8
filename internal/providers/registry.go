package providers

import (
	"fmt"

	"github.com/Davincible/ai-gateway-go/internal/processor"
)

// Kind names an upstream protocol in configuration.
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindKiro      = "kiro"
)

// Options carries the per-provider settings an upstream may need.
type Options struct {
	BaseURL    string
	ProfileARN string
}

// KnownKind reports whether kind names a supported upstream protocol.
func KnownKind(kind string) bool {
	switch kind {
	case KindOpenAI, KindAnthropic, KindKiro:
		return true
	}
	return false
}

// New builds an upstream for the given protocol kind.
func New(kind, name string, opts Options) (processor.Upstream, error) {
	switch kind {
	case KindOpenAI:
		return NewOpenAIUpstream(name, opts.BaseURL), nil
	case KindAnthropic:
		return NewAnthropicUpstream(name, opts.BaseURL), nil
	case KindKiro:
		return NewKiroUpstream(name, opts.BaseURL, opts.ProfileARN), nil
	default:
		return nil, fmt.Errorf("unknown upstream kind %q", kind)
	}
}
