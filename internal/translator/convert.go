package translator

import (
	"encoding/json"
	"fmt"
)

// ChatFromMessages converts an Anthropic Messages request into the OpenAI
// Chat Completions shape, for routing Anthropic ingress to an
// OpenAI-compatible backend.
func ChatFromMessages(req MessagesRequest) ChatRequest {
	out := ChatRequest{
		Model:  req.Model,
		Stream: req.Stream,
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		out.MaxTokens = &maxTokens
	}

	if system := systemText(req.System); system != "" {
		out.Messages = append(out.Messages, ChatMessage{Role: "system", Content: system})
	}

	for _, msg := range req.Messages {
		flat := flattenAnthropicMessage(msg)

		for _, result := range flat.toolResults {
			out.Messages = append(out.Messages, ChatMessage{
				Role:       "tool",
				Content:    toolResultContent(result),
				ToolCallID: result.ToolUseID,
			})
		}

		if flat.role == "assistant" {
			chatMsg := ChatMessage{Role: "assistant", Content: flat.content}
			for _, use := range flat.toolUses {
				args, err := json.Marshal(use.Input)
				if err != nil {
					args = []byte("{}")
				}
				chatMsg.ToolCalls = append(chatMsg.ToolCalls, ChatToolCall{
					ID:   use.ToolUseID,
					Type: "function",
					Function: ChatFunctionCall{
						Name:      use.Name,
						Arguments: string(args),
					},
				})
			}
			out.Messages = append(out.Messages, chatMsg)
			continue
		}

		if flat.content != "" || len(flat.toolResults) == 0 {
			out.Messages = append(out.Messages, ChatMessage{Role: flat.role, Content: flat.content})
		}
	}

	for _, tool := range req.Tools {
		if tool.Name == "" {
			continue
		}
		out.Tools = append(out.Tools, ChatTool{
			Type: "function",
			Function: &ChatFunctionDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	if isToolChoiceRequired(req.ToolChoice) {
		out.ToolChoice = "required"
	}
	return out
}

// MessagesFromChat converts an OpenAI Chat Completions request into the
// Anthropic Messages shape, for routing OpenAI ingress to an Anthropic
// backend.
func MessagesFromChat(req ChatRequest) MessagesRequest {
	out := MessagesRequest{
		Model:     req.Model,
		Stream:    req.Stream,
		MaxTokens: 4096,
	}
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		out.MaxTokens = *req.MaxTokens
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			if text := msg.ContentText(); text != "" {
				if existing, ok := out.System.(string); ok && existing != "" {
					out.System = existing + "\n" + text
				} else {
					out.System = text
				}
			}

		case "tool":
			out.Messages = append(out.Messages, AnthropicMessage{
				Role: "user",
				Content: []any{map[string]any{
					"type":        "tool_result",
					"tool_use_id": msg.ToolCallID,
					"content":     msg.ContentText(),
				}},
			})

		case "assistant":
			if len(msg.ToolCalls) == 0 {
				out.Messages = append(out.Messages, AnthropicMessage{Role: "assistant", Content: msg.ContentText()})
				continue
			}
			var blocks []any
			if text := msg.ContentText(); text != "" {
				blocks = append(blocks, map[string]any{"type": "text", "text": text})
			}
			for _, tc := range msg.ToolCalls {
				var input any = map[string]any{}
				if tc.Function.Arguments != "" {
					var parsed any
					if err := json.Unmarshal([]byte(tc.Function.Arguments), &parsed); err == nil {
						input = parsed
					}
				}
				blocks = append(blocks, map[string]any{
					"type":  "tool_use",
					"id":    tc.ID,
					"name":  tc.Function.Name,
					"input": input,
				})
			}
			out.Messages = append(out.Messages, AnthropicMessage{Role: "assistant", Content: blocks})

		case "user":
			out.Messages = append(out.Messages, AnthropicMessage{Role: "user", Content: msg.ContentText()})
		}
	}

	for _, tool := range req.Tools {
		if tool.Type != "function" || tool.Function == nil {
			continue
		}
		out.Tools = append(out.Tools, AnthropicTool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			InputSchema: tool.Function.Parameters,
		})
	}

	if isToolChoiceRequired(req.ToolChoice) {
		out.ToolChoice = map[string]any{"type": "any"}
	}
	return out
}

// DecodePayload re-decodes a generic JSON payload into a typed request.
func DecodePayload[T any](payload map[string]any) (T, error) {
	var out T
	raw, err := json.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}

func toolResultContent(result CWToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	return result.Content[0].Text
}
