package handlers

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/Davincible/ai-gateway-go/internal/stream"
)

// aggregate folds a parsed backend stream into one complete response, for
// clients that did not ask for streaming.
type aggregate struct {
	messageID string
	model     string
	text      string
	tools     []stream.ToolCallState
	open      map[string]*stream.ToolCallState
	stop      stream.StopReason
	usage     stream.TokenUsage
}

func newAggregate(model string) *aggregate {
	return &aggregate{
		model: model,
		open:  make(map[string]*stream.ToolCallState),
		stop:  stream.StopEndTurn,
	}
}

// collect drains the backend body through the parser.
func (a *aggregate) collect(parser stream.Parser, body io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			a.observe(parser.Process(buf[:n]))
		}
		if err == io.EOF {
			a.observe(parser.Finish())
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (a *aggregate) observe(events []stream.Event) {
	for _, ev := range events {
		switch ev.Type {
		case stream.EventMessageStart:
			a.messageID = ev.MessageID
			if ev.Model != "" {
				a.model = ev.Model
			}

		case stream.EventTextDelta:
			a.text += ev.Text

		case stream.EventToolUseStart:
			a.open[ev.ToolID] = &stream.ToolCallState{
				ID:    ev.ToolID,
				Name:  ev.ToolName,
				Index: len(a.tools) + len(a.open),
			}

		case stream.EventToolUseInputDelta:
			if tc, ok := a.open[ev.ToolID]; ok {
				tc.Input += ev.PartialJSON
			}

		case stream.EventToolUseStop:
			if tc, ok := a.open[ev.ToolID]; ok {
				a.tools = append(a.tools, *tc)
				delete(a.open, ev.ToolID)
			}

		case stream.EventMessageStop:
			a.stop = ev.StopReason

		case stream.EventUsage:
			if ev.Usage != nil {
				if ev.Usage.InputTokens > 0 {
					a.usage.InputTokens = ev.Usage.InputTokens
				}
				if ev.Usage.OutputTokens > 0 {
					a.usage.OutputTokens = ev.Usage.OutputTokens
				}
			}
		}
	}
}

func (a *aggregate) id(prefix string) string {
	if a.messageID != "" {
		return a.messageID
	}
	return prefix + uuid.NewString()
}

// openAIResponse renders a chat.completion object.
func (a *aggregate) openAIResponse() []byte {
	message := map[string]any{
		"role":    "assistant",
		"content": a.text,
	}
	if len(a.tools) > 0 {
		var calls []map[string]any
		for _, tc := range a.tools {
			input := tc.Input
			if input == "" {
				input = "{}"
			}
			calls = append(calls, map[string]any{
				"id":   tc.ID,
				"type": "function",
				"function": map[string]any{
					"name":      tc.Name,
					"arguments": input,
				},
			})
		}
		message["tool_calls"] = calls
	}

	finish := a.stop.OpenAI()
	if len(a.tools) > 0 {
		finish = "tool_calls"
	}

	body := map[string]any{
		"id":      a.id("chatcmpl-"),
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   a.model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       message,
			"finish_reason": finish,
		}},
		"usage": map[string]any{
			"prompt_tokens":     a.usage.InputTokens,
			"completion_tokens": a.usage.OutputTokens,
			"total_tokens":      a.usage.InputTokens + a.usage.OutputTokens,
		},
	}
	raw, _ := json.Marshal(body)
	return raw
}

// anthropicResponse renders a Messages API message object.
func (a *aggregate) anthropicResponse() []byte {
	var content []map[string]any
	if a.text != "" {
		content = append(content, map[string]any{"type": "text", "text": a.text})
	}
	for _, tc := range a.tools {
		var input any = map[string]any{}
		if tc.Input != "" {
			var parsed any
			if err := json.Unmarshal([]byte(tc.Input), &parsed); err == nil {
				input = parsed
			}
		}
		content = append(content, map[string]any{
			"type":  "tool_use",
			"id":    tc.ID,
			"name":  tc.Name,
			"input": input,
		})
	}
	if content == nil {
		content = []map[string]any{}
	}

	reason := a.stop.Anthropic()
	if len(a.tools) > 0 {
		reason = "tool_use"
	}

	body := map[string]any{
		"id":            a.id("msg_"),
		"type":          "message",
		"role":          "assistant",
		"model":         a.model,
		"content":       content,
		"stop_reason":   reason,
		"stop_sequence": nil,
		"usage": map[string]any{
			"input_tokens":  a.usage.InputTokens,
			"output_tokens": a.usage.OutputTokens,
		},
	}
	raw, _ := json.Marshal(body)
	return raw
}
