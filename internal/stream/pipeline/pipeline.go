// Package pipeline wires a backend parser to a client-facing generator.
package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/Davincible/ai-gateway-go/internal/stream"
	"github.com/Davincible/ai-gateway-go/internal/stream/generators"
	"github.com/Davincible/ai-gateway-go/internal/stream/parsers"
)

// BackendKind selects the parser for the upstream wire format.
type BackendKind string

const (
	BackendEventStream BackendKind = "event-stream"
	BackendOpenAI      BackendKind = "openai"
	BackendAnthropic   BackendKind = "anthropic"
)

// FrontendKind selects the generator for the client-facing SSE format.
type FrontendKind string

const (
	FrontendOpenAI    FrontendKind = "openai"
	FrontendAnthropic FrontendKind = "anthropic"
)

// Config describes one streaming translation.
type Config struct {
	Backend  BackendKind
	Frontend FrontendKind
	// Model is echoed into synthesized frames (message ids, chunk model).
	Model  string
	Logger *slog.Logger

	// Notifier, when set, receives UI-level projections of the stream.
	Notifier  *stream.Notifier
	RequestID string
}

// Pipeline translates one streaming response: backend bytes in, client SSE
// frames out. Events flow from parser to generator in arrival order.
type Pipeline struct {
	parser    stream.Parser
	generator stream.Generator
	usage     stream.TokenUsage
	backend   *stream.BackendUsage

	notifier  *stream.Notifier
	requestID string
}

// New builds a pipeline for the given backend/frontend pair.
func New(cfg Config) (*Pipeline, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	parser, err := NewParser(cfg.Backend, cfg.Model, logger)
	if err != nil {
		return nil, err
	}

	var generator stream.Generator
	switch cfg.Frontend {
	case FrontendOpenAI:
		generator = generators.NewOpenAIGenerator(cfg.Model)
	case FrontendAnthropic:
		generator = generators.NewAnthropicGenerator(cfg.Model)
	default:
		return nil, fmt.Errorf("unknown frontend kind %q", cfg.Frontend)
	}

	return &Pipeline{
		parser:    parser,
		generator: generator,
		notifier:  cfg.Notifier,
		requestID: cfg.RequestID,
	}, nil
}

// NewParser builds the backend parser alone, for callers that aggregate
// events instead of re-rendering SSE.
func NewParser(backend BackendKind, model string, logger *slog.Logger) (stream.Parser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch backend {
	case BackendEventStream:
		return parsers.NewEventStreamParser(model, logger), nil
	case BackendOpenAI:
		return parsers.NewOpenAIParser(logger), nil
	case BackendAnthropic:
		return parsers.NewAnthropicParser(logger), nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", backend)
	}
}

// ProcessChunk feeds backend bytes in and returns the client frames that
// became complete.
func (p *Pipeline) ProcessChunk(chunk []byte) []string {
	var frames []string
	for _, ev := range p.parser.Process(chunk) {
		p.observe(ev)
		frames = append(frames, p.generator.Generate(ev)...)
	}
	return frames
}

// Finish flushes both stages when the backend stream ends.
func (p *Pipeline) Finish() []string {
	var frames []string
	for _, ev := range p.parser.Finish() {
		p.observe(ev)
		frames = append(frames, p.generator.Generate(ev)...)
	}
	if p.notifier != nil {
		p.notifier.Publish(stream.UIEvent{Kind: stream.UIFinalDone, RequestID: p.requestID})
	}
	return append(frames, p.generator.Finish()...)
}

// Usage reports the token counts observed on the stream so far.
func (p *Pipeline) Usage() stream.TokenUsage {
	return p.usage
}

// BackendUsage reports provider-proprietary quota signals, if any arrived.
func (p *Pipeline) BackendUsage() *stream.BackendUsage {
	return p.backend
}

func (p *Pipeline) observe(ev stream.Event) {
	if p.notifier != nil {
		if ui, ok := stream.UIEventFrom(ev); ok {
			ui.RequestID = p.requestID
			p.notifier.Publish(ui)
		}
	}

	switch ev.Type {
	case stream.EventUsage:
		if ev.Usage == nil {
			return
		}
		if ev.Usage.InputTokens > 0 {
			p.usage.InputTokens = ev.Usage.InputTokens
		}
		if ev.Usage.OutputTokens > 0 {
			p.usage.OutputTokens = ev.Usage.OutputTokens
		}
		if ev.Usage.CacheReadTokens > 0 {
			p.usage.CacheReadTokens = ev.Usage.CacheReadTokens
		}
		if ev.Usage.CacheCreationTokens > 0 {
			p.usage.CacheCreationTokens = ev.Usage.CacheCreationTokens
		}
	case stream.EventBackendUsage:
		p.backend = ev.Backend
	}
}
