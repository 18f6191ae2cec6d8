package generators

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Davincible/ai-gateway-go/internal/stream"
)

// OpenAIGenerator renders stream events as OpenAI chat.completion.chunk SSE
// frames terminated by the [DONE] sentinel. Tool calls are identified by
// array position in this format, so the generator assigns indices in
// first-seen order and keeps the id-to-index mapping for input fragments.
type OpenAIGenerator struct {
	id      string
	model   string
	created int64
	started bool
	stopped bool

	toolIndices   map[string]int
	nextToolIndex int

	usage *stream.TokenUsage
}

func NewOpenAIGenerator(model string) *OpenAIGenerator {
	return &OpenAIGenerator{
		id:          "chatcmpl-" + uuid.NewString(),
		model:       model,
		created:     time.Now().Unix(),
		toolIndices: make(map[string]int),
	}
}

// Generate renders one event into zero or more complete SSE frames.
func (g *OpenAIGenerator) Generate(ev stream.Event) []string {
	switch ev.Type {
	case stream.EventMessageStart:
		if ev.Model != "" {
			g.model = ev.Model
		}
		return g.ensureStarted()

	case stream.EventTextDelta:
		frames := g.ensureStarted()
		return append(frames, g.chunk(map[string]any{"content": ev.Text}, nil))

	case stream.EventToolUseStart:
		frames := g.ensureStarted()
		index := g.nextToolIndex
		g.nextToolIndex++
		g.toolIndices[ev.ToolID] = index
		return append(frames, g.chunk(map[string]any{
			"tool_calls": []any{map[string]any{
				"index": index,
				"id":    ev.ToolID,
				"type":  "function",
				"function": map[string]any{
					"name":      ev.ToolName,
					"arguments": "",
				},
			}},
		}, nil))

	case stream.EventToolUseInputDelta:
		index, open := g.toolIndices[ev.ToolID]
		if !open {
			return nil
		}
		return []string{g.chunk(map[string]any{
			"tool_calls": []any{map[string]any{
				"index":    index,
				"function": map[string]any{"arguments": ev.PartialJSON},
			}},
		}, nil)}

	case stream.EventMessageStop:
		return g.messageStop(ev.StopReason)

	case stream.EventUsage:
		g.accumulateUsage(ev.Usage)
		return nil

	case stream.EventError:
		payload, _ := json.Marshal(map[string]any{
			"error": map[string]any{
				"message": ev.ErrorMessage,
				"type":    ev.ErrorType,
			},
		})
		return []string{fmt.Sprintf("data: %s\n\n", payload)}

	case stream.EventPing:
		return []string{": ping\n\n"}

	default:
		return nil
	}
}

// Finish emits the terminal frames when the backend never sent MessageStop.
func (g *OpenAIGenerator) Finish() []string {
	if !g.started || g.stopped {
		return nil
	}
	reason := stream.StopEndTurn
	if g.nextToolIndex > 0 {
		reason = stream.StopToolUse
	}
	return g.messageStop(reason)
}

func (g *OpenAIGenerator) messageStop(reason stream.StopReason) []string {
	if g.stopped {
		return nil
	}
	g.stopped = true

	frames := g.ensureStarted()
	frames = append(frames, g.finishChunk(reason.OpenAI()))
	return append(frames, "data: [DONE]\n\n")
}

func (g *OpenAIGenerator) ensureStarted() []string {
	if g.started {
		return nil
	}
	g.started = true
	return []string{g.chunk(map[string]any{"role": "assistant", "content": ""}, nil)}
}

func (g *OpenAIGenerator) finishChunk(finishReason string) string {
	body := map[string]any{
		"id":      g.id,
		"object":  "chat.completion.chunk",
		"created": g.created,
		"model":   g.model,
		"choices": []any{map[string]any{
			"index":         0,
			"delta":         map[string]any{},
			"finish_reason": finishReason,
		}},
	}
	if g.usage != nil {
		body["usage"] = map[string]any{
			"prompt_tokens":     g.usage.InputTokens,
			"completion_tokens": g.usage.OutputTokens,
			"total_tokens":      g.usage.InputTokens + g.usage.OutputTokens,
		}
	}
	payload, _ := json.Marshal(body)
	return fmt.Sprintf("data: %s\n\n", payload)
}

func (g *OpenAIGenerator) chunk(delta map[string]any, finishReason *string) string {
	var finish any
	if finishReason != nil {
		finish = *finishReason
	}
	payload, _ := json.Marshal(map[string]any{
		"id":      g.id,
		"object":  "chat.completion.chunk",
		"created": g.created,
		"model":   g.model,
		"choices": []any{map[string]any{
			"index":         0,
			"delta":         delta,
			"finish_reason": finish,
		}},
	})
	return fmt.Sprintf("data: %s\n\n", payload)
}

func (g *OpenAIGenerator) accumulateUsage(usage *stream.TokenUsage) {
	if usage == nil {
		return
	}
	if g.usage == nil {
		g.usage = &stream.TokenUsage{}
	}
	if usage.InputTokens > 0 {
		g.usage.InputTokens = usage.InputTokens
	}
	if usage.OutputTokens > 0 {
		g.usage.OutputTokens = usage.OutputTokens
	}
}
