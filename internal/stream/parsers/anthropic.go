package parsers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/Davincible/ai-gateway-go/internal/stream"
)

// AnthropicParser turns raw bytes of an Anthropic Messages streaming response
// into stream events. Anthropic frames are named SSE events; the event name
// line is informational since the data payload repeats the type.
type AnthropicParser struct {
	logger  *slog.Logger
	buf     []byte
	stopped bool
	// content block index -> tool id, for input_json_delta frames that only
	// carry the block index
	blockTools map[int]string
}

func NewAnthropicParser(logger *slog.Logger) *AnthropicParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnthropicParser{
		logger:     logger,
		blockTools: make(map[int]string),
	}
}

// Process buffers the chunk and emits events for every complete data line.
func (p *AnthropicParser) Process(chunk []byte) []stream.Event {
	p.buf = append(p.buf, chunk...)

	var events []stream.Event
	for {
		nl := bytes.IndexByte(p.buf, '\n')
		if nl < 0 {
			break
		}
		line := strings.TrimSpace(string(p.buf[:nl]))
		p.buf = p.buf[nl+1:]

		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		events = append(events, p.processData(data)...)
	}
	return events
}

func (p *AnthropicParser) processData(data string) []stream.Event {
	var frame map[string]any
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		p.logger.Warn("Skipping unparseable stream chunk", "error", err)
		return nil
	}

	frameType, _ := frame["type"].(string)
	switch frameType {
	case "message_start":
		return p.messageStart(frame)
	case "content_block_start":
		return p.blockStart(frame)
	case "content_block_delta":
		return p.blockDelta(frame)
	case "content_block_stop":
		return p.blockStop(frame)
	case "message_delta":
		return p.messageDelta(frame)
	case "message_stop":
		if p.stopped {
			return nil
		}
		p.stopped = true
		return nil
	case "ping":
		return []stream.Event{stream.Ping()}
	case "error":
		errType, errMsg := "api_error", ""
		if e, ok := frame["error"].(map[string]any); ok {
			if t, ok := e["type"].(string); ok {
				errType = t
			}
			errMsg, _ = e["message"].(string)
		}
		return []stream.Event{stream.ErrorEvent(errType, errMsg)}
	default:
		return nil
	}
}

func (p *AnthropicParser) messageStart(frame map[string]any) []stream.Event {
	msg, ok := frame["message"].(map[string]any)
	if !ok {
		return nil
	}
	id, _ := msg["id"].(string)
	model, _ := msg["model"].(string)
	events := []stream.Event{stream.MessageStart(id, model)}

	if u, ok := msg["usage"].(map[string]any); ok {
		usage := stream.TokenUsage{}
		if v, ok := u["input_tokens"].(float64); ok {
			usage.InputTokens = int(v)
		}
		if v, ok := u["cache_read_input_tokens"].(float64); ok {
			usage.CacheReadTokens = int(v)
		}
		if v, ok := u["cache_creation_input_tokens"].(float64); ok {
			usage.CacheCreationTokens = int(v)
		}
		events = append(events, stream.UsageEvent(usage))
	}
	return events
}

func (p *AnthropicParser) blockStart(frame map[string]any) []stream.Event {
	index := frameIndex(frame)
	block, ok := frame["content_block"].(map[string]any)
	if !ok {
		return nil
	}

	blockType, _ := block["type"].(string)
	if blockType == "tool_use" {
		id, _ := block["id"].(string)
		name, _ := block["name"].(string)
		p.blockTools[index] = id
		return []stream.Event{
			stream.ContentBlockStart(index, stream.BlockToolUse),
			stream.ToolUseStart(id, name),
		}
	}
	return []stream.Event{stream.ContentBlockStart(index, stream.BlockText)}
}

func (p *AnthropicParser) blockDelta(frame map[string]any) []stream.Event {
	index := frameIndex(frame)
	delta, ok := frame["delta"].(map[string]any)
	if !ok {
		return nil
	}

	deltaType, _ := delta["type"].(string)
	switch deltaType {
	case "text_delta":
		if text, ok := delta["text"].(string); ok && text != "" {
			return []stream.Event{stream.TextDelta(text)}
		}
	case "input_json_delta":
		if partial, ok := delta["partial_json"].(string); ok {
			if toolID, open := p.blockTools[index]; open {
				return []stream.Event{stream.ToolUseInputDelta(toolID, partial)}
			}
		}
	}
	return nil
}

func (p *AnthropicParser) blockStop(frame map[string]any) []stream.Event {
	index := frameIndex(frame)
	if toolID, open := p.blockTools[index]; open {
		delete(p.blockTools, index)
		return []stream.Event{
			stream.ToolUseStop(toolID),
			stream.ContentBlockStop(index),
		}
	}
	return []stream.Event{stream.ContentBlockStop(index)}
}

func (p *AnthropicParser) messageDelta(frame map[string]any) []stream.Event {
	var events []stream.Event

	if u, ok := frame["usage"].(map[string]any); ok {
		usage := stream.TokenUsage{}
		if v, ok := u["output_tokens"].(float64); ok {
			usage.OutputTokens = int(v)
		}
		if usage.OutputTokens > 0 {
			events = append(events, stream.UsageEvent(usage))
		}
	}

	if delta, ok := frame["delta"].(map[string]any); ok {
		if reason, ok := delta["stop_reason"].(string); ok && reason != "" && !p.stopped {
			p.stopped = true
			events = append(events, stream.MessageStop(stream.StopReasonFromAnthropic(reason)))
		}
	}
	return events
}

// Finish flushes terminal state when the transport closes mid-message.
func (p *AnthropicParser) Finish() []stream.Event {
	if p.stopped {
		return nil
	}
	p.stopped = true

	var events []stream.Event
	for index, toolID := range p.blockTools {
		events = append(events, stream.ToolUseStop(toolID), stream.ContentBlockStop(index))
	}
	return append(events, stream.MessageStop(stream.StopEndTurn))
}

func frameIndex(frame map[string]any) int {
	if v, ok := frame["index"].(float64); ok {
		return int(v)
	}
	return 0
}
