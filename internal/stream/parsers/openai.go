// Package parsers converts backend wire formats into stream events.
package parsers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/Davincible/ai-gateway-go/internal/stream"
)

// ToolCall is a fully accumulated tool invocation from an OpenAI-style stream.
type ToolCall struct {
	ID        string
	Type      string
	Name      string
	Arguments string
}

type toolCallDelta struct {
	index     int
	id        string
	callType  string
	name      string
	arguments string
}

// OpenAISSEParser accumulates the data lines of an OpenAI-compatible SSE
// stream: text content, positional tool-call deltas, and token usage.
type OpenAISSEParser struct {
	logger      *slog.Logger
	fullContent strings.Builder
	toolDeltas  map[int]*toolCallDelta
}

func NewOpenAISSEParser(logger *slog.Logger) *OpenAISSEParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAISSEParser{
		logger:     logger,
		toolDeltas: make(map[int]*toolCallDelta),
	}
}

// ParseData consumes the payload of one "data:" line and returns the text
// delta it carried (if any), whether the stream is finished, and any token
// usage reported on this frame.
func (p *OpenAISSEParser) ParseData(data string) (textDelta string, done bool, usage *stream.TokenUsage) {
	if strings.TrimSpace(data) == "[DONE]" {
		return "", true, nil
	}

	var chunk map[string]any
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		p.logger.Warn("Skipping unparseable stream chunk", "error", err, "data", data)
		return "", false, nil
	}

	usage = extractUsage(chunk)

	choices, ok := chunk["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", false, usage
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return "", false, usage
	}

	if reason, ok := choice["finish_reason"].(string); ok {
		done = reason == "stop" || reason == "tool_calls"
	}

	delta, ok := choice["delta"].(map[string]any)
	if !ok {
		return "", done, usage
	}

	if content, ok := delta["content"].(string); ok && content != "" {
		p.fullContent.WriteString(content)
		textDelta = content
	}

	if toolCalls, ok := delta["tool_calls"].([]any); ok {
		for _, tc := range toolCalls {
			if m, ok := tc.(map[string]any); ok {
				p.parseToolCallDelta(m)
			}
		}
	}

	return textDelta, done, usage
}

func (p *OpenAISSEParser) parseToolCallDelta(tc map[string]any) {
	index := 0
	if idx, ok := tc["index"].(float64); ok {
		index = int(idx)
	}

	delta, ok := p.toolDeltas[index]
	if !ok {
		delta = &toolCallDelta{index: index}
		p.toolDeltas[index] = delta
	}

	if id, ok := tc["id"].(string); ok {
		delta.id = id
	}
	if t, ok := tc["type"].(string); ok {
		delta.callType = t
	}
	if fn, ok := tc["function"].(map[string]any); ok {
		if name, ok := fn["name"].(string); ok {
			delta.name = name
		}
		if args, ok := fn["arguments"].(string); ok {
			delta.arguments += args
		}
	}
}

// FinalizeToolCalls returns the accumulated tool calls ordered by stream
// index. Entries that never received an id or a name are dropped.
func (p *OpenAISSEParser) FinalizeToolCalls() []ToolCall {
	indices := make([]int, 0, len(p.toolDeltas))
	for idx := range p.toolDeltas {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	calls := make([]ToolCall, 0, len(indices))
	for _, idx := range indices {
		delta := p.toolDeltas[idx]
		if delta.id == "" || delta.name == "" {
			continue
		}
		callType := delta.callType
		if callType == "" {
			callType = "function"
		}
		calls = append(calls, ToolCall{
			ID:        delta.id,
			Type:      callType,
			Name:      delta.name,
			Arguments: delta.arguments,
		})
	}
	return calls
}

// HasToolCalls reports whether any tool-call delta has been seen.
func (p *OpenAISSEParser) HasToolCalls() bool {
	return len(p.toolDeltas) > 0
}

// FullContent returns the concatenated text content seen so far.
func (p *OpenAISSEParser) FullContent() string {
	return p.fullContent.String()
}

func extractUsage(chunk map[string]any) *stream.TokenUsage {
	u, ok := chunk["usage"].(map[string]any)
	if !ok {
		return nil
	}
	usage := &stream.TokenUsage{}
	if v, ok := u["prompt_tokens"].(float64); ok {
		usage.InputTokens = int(v)
	}
	if v, ok := u["completion_tokens"].(float64); ok {
		usage.OutputTokens = int(v)
	}
	if details, ok := u["prompt_tokens_details"].(map[string]any); ok {
		if v, ok := details["cached_tokens"].(float64); ok {
			usage.CacheReadTokens = int(v)
		}
	}
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		return nil
	}
	return usage
}

// OpenAIParser turns raw bytes from an OpenAI-compatible streaming response
// into stream events. Incoming chunks may split SSE lines arbitrarily.
type OpenAIParser struct {
	logger  *slog.Logger
	acc     *OpenAISSEParser
	buf     []byte
	started bool
	stopped bool
	// index -> tool id for deltas that only carry the positional index
	openTools map[int]string
	toolOrder []int
}

func NewOpenAIParser(logger *slog.Logger) *OpenAIParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIParser{
		logger:    logger,
		acc:       NewOpenAISSEParser(logger),
		openTools: make(map[int]string),
	}
}

// Process buffers the chunk and emits events for every complete SSE line.
func (p *OpenAIParser) Process(chunk []byte) []stream.Event {
	p.buf = append(p.buf, chunk...)

	var events []stream.Event
	for {
		nl := bytes.IndexByte(p.buf, '\n')
		if nl < 0 {
			break
		}
		line := strings.TrimSpace(string(p.buf[:nl]))
		p.buf = p.buf[nl+1:]

		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		events = append(events, p.processData(data)...)
	}
	return events
}

func (p *OpenAIParser) processData(data string) []stream.Event {
	if data == "[DONE]" {
		return p.close(stream.StopEndTurn)
	}

	var chunk map[string]any
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		p.logger.Warn("Skipping unparseable stream chunk", "error", err)
		return nil
	}

	var events []stream.Event

	if !p.started {
		p.started = true
		id, _ := chunk["id"].(string)
		model, _ := chunk["model"].(string)
		events = append(events, stream.MessageStart(id, model))
	}

	if usage := extractUsage(chunk); usage != nil {
		events = append(events, stream.UsageEvent(*usage))
	}

	choices, ok := chunk["choices"].([]any)
	if !ok || len(choices) == 0 {
		return events
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return events
	}

	if delta, ok := choice["delta"].(map[string]any); ok {
		if content, ok := delta["content"].(string); ok && content != "" {
			p.acc.fullContent.WriteString(content)
			events = append(events, stream.TextDelta(content))
		}
		if toolCalls, ok := delta["tool_calls"].([]any); ok {
			for _, tc := range toolCalls {
				m, ok := tc.(map[string]any)
				if !ok {
					continue
				}
				p.acc.parseToolCallDelta(m)
				events = append(events, p.toolEvents(m)...)
			}
		}
	}

	if reason, ok := choice["finish_reason"].(string); ok && reason != "" {
		events = append(events, p.close(stream.StopReasonFromOpenAI(reason))...)
	}

	return events
}

func (p *OpenAIParser) toolEvents(tc map[string]any) []stream.Event {
	index := 0
	if idx, ok := tc["index"].(float64); ok {
		index = int(idx)
	}

	var events []stream.Event

	id, _ := tc["id"].(string)
	if _, open := p.openTools[index]; !open && id != "" {
		name := ""
		if fn, ok := tc["function"].(map[string]any); ok {
			name, _ = fn["name"].(string)
		}
		p.openTools[index] = id
		p.toolOrder = append(p.toolOrder, index)
		events = append(events, stream.ToolUseStart(id, name))
	}

	if fn, ok := tc["function"].(map[string]any); ok {
		if args, ok := fn["arguments"].(string); ok && args != "" {
			if toolID, open := p.openTools[index]; open {
				events = append(events, stream.ToolUseInputDelta(toolID, args))
			}
		}
	}

	return events
}

func (p *OpenAIParser) close(reason stream.StopReason) []stream.Event {
	if p.stopped {
		return nil
	}
	p.stopped = true

	var events []stream.Event
	for _, index := range p.toolOrder {
		events = append(events, stream.ToolUseStop(p.openTools[index]))
	}
	events = append(events, stream.MessageStop(reason))
	return events
}

// Finish flushes terminal state when the transport closes without a
// finish_reason or [DONE] sentinel.
func (p *OpenAIParser) Finish() []stream.Event {
	if !p.started || p.stopped {
		return nil
	}
	reason := stream.StopEndTurn
	if len(p.toolOrder) > 0 {
		reason = stream.StopToolUse
	}
	return p.close(reason)
}

// Accumulator exposes the underlying content/tool-call accumulator.
func (p *OpenAIParser) Accumulator() *OpenAISSEParser {
	return p.acc
}
