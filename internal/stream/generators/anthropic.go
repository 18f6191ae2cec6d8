// Package generators renders stream events into client-facing SSE formats.
package generators

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Davincible/ai-gateway-go/internal/stream"
)

// AnthropicGenerator renders stream events as Anthropic Messages SSE. It is
// stateful: it assigns its own content-block indices, opens blocks the
// backend never announced, and closes every open block before message_stop
// so the client always sees a well-formed structure.
type AnthropicGenerator struct {
	messageID string
	model     string
	started   bool
	stopped   bool

	nextIndex      int
	textBlockIndex int
	textBlockOpen  bool
	toolBlocks     map[string]int
	toolOrder      []string

	inputTokens         int
	outputTokens        int
	cacheReadTokens     int
	cacheCreationTokens int
}

func NewAnthropicGenerator(model string) *AnthropicGenerator {
	return &AnthropicGenerator{
		model:      model,
		toolBlocks: make(map[string]int),
	}
}

// Generate renders one event into zero or more complete SSE frames.
func (g *AnthropicGenerator) Generate(ev stream.Event) []string {
	switch ev.Type {
	case stream.EventMessageStart:
		if ev.MessageID != "" {
			g.messageID = ev.MessageID
		}
		if ev.Model != "" {
			g.model = ev.Model
		}
		return g.ensureStarted()

	case stream.EventTextDelta:
		frames := g.ensureStarted()
		if !g.textBlockOpen {
			g.textBlockIndex = g.nextIndex
			g.nextIndex++
			g.textBlockOpen = true
			frames = append(frames, g.frame("content_block_start", map[string]any{
				"type":          "content_block_start",
				"index":         g.textBlockIndex,
				"content_block": map[string]any{"type": "text", "text": ""},
			}))
		}
		return append(frames, g.frame("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": g.textBlockIndex,
			"delta": map[string]any{"type": "text_delta", "text": ev.Text},
		}))

	case stream.EventToolUseStart:
		frames := g.ensureStarted()
		frames = append(frames, g.closeTextBlock()...)
		index := g.nextIndex
		g.nextIndex++
		g.toolBlocks[ev.ToolID] = index
		g.toolOrder = append(g.toolOrder, ev.ToolID)
		return append(frames, g.frame("content_block_start", map[string]any{
			"type":  "content_block_start",
			"index": index,
			"content_block": map[string]any{
				"type":  "tool_use",
				"id":    ev.ToolID,
				"name":  ev.ToolName,
				"input": map[string]any{},
			},
		}))

	case stream.EventToolUseInputDelta:
		index, open := g.toolBlocks[ev.ToolID]
		if !open {
			return nil
		}
		return []string{g.frame("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": index,
			"delta": map[string]any{"type": "input_json_delta", "partial_json": ev.PartialJSON},
		})}

	case stream.EventToolUseStop:
		index, open := g.toolBlocks[ev.ToolID]
		if !open {
			return nil
		}
		delete(g.toolBlocks, ev.ToolID)
		return []string{g.blockStop(index)}

	case stream.EventMessageStop:
		return g.messageStop(ev.StopReason)

	case stream.EventUsage:
		g.accumulateUsage(ev.Usage)
		return nil

	case stream.EventError:
		return []string{g.frame("error", map[string]any{
			"type": "error",
			"error": map[string]any{
				"type":    ev.ErrorType,
				"message": ev.ErrorMessage,
			},
		})}

	case stream.EventPing:
		return []string{g.frame("ping", map[string]any{"type": "ping"})}

	default:
		// Structural events from Anthropic-native backends are re-derived
		// locally, and backend usage has no client-side rendering.
		return nil
	}
}

// Finish guarantees terminal frames when the backend stream ends without a
// MessageStop.
func (g *AnthropicGenerator) Finish() []string {
	if !g.started || g.stopped {
		return nil
	}
	return g.messageStop(stream.StopEndTurn)
}

func (g *AnthropicGenerator) messageStop(reason stream.StopReason) []string {
	if g.stopped {
		return nil
	}
	g.stopped = true

	frames := g.ensureStarted()
	frames = append(frames, g.closeTextBlock()...)
	for _, toolID := range g.toolOrder {
		if index, open := g.toolBlocks[toolID]; open {
			delete(g.toolBlocks, toolID)
			frames = append(frames, g.blockStop(index))
		}
	}

	frames = append(frames, g.frame("message_delta", map[string]any{
		"type":  "message_delta",
		"delta": map[string]any{"stop_reason": reason.Anthropic(), "stop_sequence": nil},
		"usage": map[string]any{"output_tokens": g.outputTokens},
	}))
	return append(frames, g.frame("message_stop", map[string]any{"type": "message_stop"}))
}

func (g *AnthropicGenerator) ensureStarted() []string {
	if g.started {
		return nil
	}
	g.started = true
	if g.messageID == "" {
		g.messageID = "msg_" + uuid.NewString()
	}
	return []string{g.frame("message_start", map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":            g.messageID,
			"type":          "message",
			"role":          "assistant",
			"model":         g.model,
			"content":       []any{},
			"stop_reason":   nil,
			"stop_sequence": nil,
			"usage": map[string]any{
				"input_tokens":  g.inputTokens,
				"output_tokens": 0,
			},
		},
	})}
}

func (g *AnthropicGenerator) closeTextBlock() []string {
	if !g.textBlockOpen {
		return nil
	}
	g.textBlockOpen = false
	return []string{g.blockStop(g.textBlockIndex)}
}

func (g *AnthropicGenerator) blockStop(index int) string {
	return g.frame("content_block_stop", map[string]any{
		"type":  "content_block_stop",
		"index": index,
	})
}

func (g *AnthropicGenerator) accumulateUsage(usage *stream.TokenUsage) {
	if usage == nil {
		return
	}
	if usage.InputTokens > 0 {
		g.inputTokens = usage.InputTokens
	}
	if usage.OutputTokens > 0 {
		g.outputTokens = usage.OutputTokens
	}
	if usage.CacheReadTokens > 0 {
		g.cacheReadTokens = usage.CacheReadTokens
	}
	if usage.CacheCreationTokens > 0 {
		g.cacheCreationTokens = usage.CacheCreationTokens
	}
}

func (g *AnthropicGenerator) frame(event string, data map[string]any) string {
	payload, _ := json.Marshal(data)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload)
}
