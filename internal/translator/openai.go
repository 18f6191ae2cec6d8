package translator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ChatRequest is the OpenAI Chat Completions request surface the gateway
// accepts. Content and ToolChoice stay loosely typed because clients send
// both string and structured forms.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Tools       []ChatTool    `json:"tools,omitempty"`
	ToolChoice  any           `json:"tool_choice,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
}

type ChatMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content,omitempty"`
	ToolCalls  []ChatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type ChatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ChatFunctionCall `json:"function"`
}

type ChatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ChatTool struct {
	Type     string           `json:"type"`
	Function *ChatFunctionDef `json:"function,omitempty"`
}

type ChatFunctionDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ContentText flattens the message content to plain text: either the string
// form or the concatenated text parts of the array form.
func (m ChatMessage) ContentText() string {
	switch content := m.Content.(type) {
	case string:
		return content
	case []any:
		var parts []string
		for _, p := range content {
			block, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if blockType, _ := block["type"].(string); blockType == "text" {
				if text, ok := block["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

// OpenAITranslator converts ChatRequests into backend requests.
type OpenAITranslator struct {
	ProfileARN string
}

func NewOpenAITranslator(profileARN string) *OpenAITranslator {
	return &OpenAITranslator{ProfileARN: profileARN}
}

// Translate builds the backend request. The system message folds into the
// first user turn, tool messages merge into the following user turn as tool
// results, and tool_choice=required becomes a prompt instruction since the
// backend has no equivalent parameter.
func (t *OpenAITranslator) Translate(req ChatRequest) (CWRequest, error) {
	if len(req.Messages) == 0 {
		return CWRequest{}, fmt.Errorf("request has no messages")
	}

	modelID := MapModel(req.Model)

	var systemPrompt string
	var raw []ChatMessage
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			systemPrompt = msg.ContentText()
			continue
		}
		raw = append(raw, msg)
	}

	if isToolChoiceRequired(req.ToolChoice) && len(req.Tools) > 0 {
		systemPrompt += toolInstruction
	}

	messages := preprocessChatMessages(raw)
	tools := convertChatTools(req.Tools)

	return buildConversation(systemPrompt, messages, modelID, tools, t.ProfileARN), nil
}

// preprocessChatMessages folds "tool" role messages into the next user turn
// as tool results, synthesizing a user turn when an assistant message (or
// the end of the list) follows them directly.
func preprocessChatMessages(messages []ChatMessage) []processedMessage {
	var result []processedMessage
	var pending []CWToolResult

	flushPending := func() []CWToolResult {
		results := dedupeToolResults(pending)
		pending = nil
		return results
	}

	for _, msg := range messages {
		switch msg.Role {
		case "tool":
			pending = append(pending, CWToolResult{
				Content:   []CWTextContent{{Text: msg.ContentText()}},
				Status:    "success",
				ToolUseID: msg.ToolCallID,
			})

		case "user":
			result = append(result, processedMessage{
				role:        "user",
				content:     msg.ContentText(),
				toolResults: flushPending(),
			})

		case "assistant":
			if len(pending) > 0 {
				result = append(result, processedMessage{
					role:        "user",
					content:     placeholderToolResults,
					toolResults: flushPending(),
				})
			}

			var toolUses []CWToolUse
			for _, tc := range msg.ToolCalls {
				var input any = map[string]any{}
				if tc.Function.Arguments != "" {
					var parsed any
					if err := json.Unmarshal([]byte(tc.Function.Arguments), &parsed); err == nil {
						input = parsed
					}
				}
				toolUses = append(toolUses, CWToolUse{
					Input:     input,
					Name:      tc.Function.Name,
					ToolUseID: tc.ID,
				})
			}
			result = append(result, processedMessage{
				role:     "assistant",
				content:  msg.ContentText(),
				toolUses: toolUses,
			})
		}
	}

	if len(pending) > 0 {
		result = append(result, processedMessage{
			role:        "user",
			content:     placeholderToolResults,
			toolResults: flushPending(),
		})
	}

	return result
}

func convertChatTools(tools []ChatTool) []CWTool {
	if len(tools) == 0 {
		return nil
	}

	var out []CWTool
	functionCount := 0
	for _, tool := range tools {
		switch tool.Type {
		case "function":
			if tool.Function == nil || functionCount >= maxFunctionTools {
				continue
			}
			functionCount++

			params := tool.Function.Parameters
			if params == nil {
				params = map[string]any{"type": "object", "properties": map[string]any{}}
			}
			desc := tool.Function.Description
			if desc == "" {
				desc = "Tool: " + tool.Function.Name
			}

			out = append(out, CWTool{ToolSpecification: &ToolSpecification{
				Name:        tool.Function.Name,
				Description: truncateDescription(desc),
				InputSchema: InputSchema{JSON: params},
			}})

		case "web_search", "web_search_20250305":
			out = append(out, CWTool{Type: "web_search"})
		}
	}
	return out
}
