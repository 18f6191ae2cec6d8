package translator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessagesRequest is the Anthropic Messages request surface the gateway
// accepts. System and message content stay loosely typed: both have string
// and block-array forms on the wire.
type MessagesRequest struct {
	Model      string             `json:"model"`
	System     any                `json:"system,omitempty"`
	Messages   []AnthropicMessage `json:"messages"`
	Tools      []AnthropicTool    `json:"tools,omitempty"`
	ToolChoice any                `json:"tool_choice,omitempty"`
	MaxTokens  int                `json:"max_tokens"`
	Stream     bool               `json:"stream,omitempty"`
}

type AnthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type AnthropicTool struct {
	Type        string `json:"type,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema,omitempty"`
}

// AnthropicTranslator converts MessagesRequests into backend requests
// directly, without going through the OpenAI shape.
type AnthropicTranslator struct {
	ProfileARN string
}

func NewAnthropicTranslator(profileARN string) *AnthropicTranslator {
	return &AnthropicTranslator{ProfileARN: profileARN}
}

// Translate builds the backend request from an Anthropic Messages request.
func (t *AnthropicTranslator) Translate(req MessagesRequest) (CWRequest, error) {
	if len(req.Messages) == 0 {
		return CWRequest{}, fmt.Errorf("request has no messages")
	}

	modelID := MapModel(req.Model)

	systemPrompt := systemText(req.System)
	if isToolChoiceRequired(req.ToolChoice) && len(req.Tools) > 0 {
		systemPrompt += toolInstruction
	}

	messages := preprocessAnthropicMessages(req.Messages)
	tools := convertAnthropicTools(req.Tools)

	return buildConversation(systemPrompt, messages, modelID, tools, t.ProfileARN), nil
}

// systemText extracts the system prompt from either the string form or the
// array-of-text-blocks form.
func systemText(system any) string {
	switch v := system.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, item := range v {
			block, ok := item.(map[string]any)
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

// preprocessAnthropicMessages flattens content blocks per message and then
// merges stray tool results into adjacent user turns, deduplicated by
// tool_use_id.
func preprocessAnthropicMessages(messages []AnthropicMessage) []processedMessage {
	var flat []processedMessage
	for _, msg := range messages {
		flat = append(flat, flattenAnthropicMessage(msg))
	}

	var merged []processedMessage
	var pending []CWToolResult

	flushPending := func() []CWToolResult {
		results := dedupeToolResults(pending)
		pending = nil
		return results
	}

	for _, msg := range flat {
		if msg.role == "user" {
			pending = append(pending, msg.toolResults...)
			content := msg.content
			if content == "" && len(pending) > 0 {
				content = placeholderToolResults
			}
			merged = append(merged, processedMessage{
				role:        "user",
				content:     content,
				toolResults: flushPending(),
				images:      msg.images,
			})
			continue
		}

		if len(pending) > 0 {
			merged = append(merged, processedMessage{
				role:        "user",
				content:     placeholderToolResults,
				toolResults: flushPending(),
			})
		}
		merged = append(merged, msg)
	}

	if len(pending) > 0 {
		merged = append(merged, processedMessage{
			role:        "user",
			content:     placeholderToolResults,
			toolResults: flushPending(),
		})
	}

	return merged
}

// flattenAnthropicMessage reduces one message's content blocks to text,
// tool uses, tool results, and images.
func flattenAnthropicMessage(msg AnthropicMessage) processedMessage {
	out := processedMessage{role: msg.Role}

	switch content := msg.Content.(type) {
	case string:
		out.content = content
		return out

	case []any:
		var texts []string
		for _, item := range content {
			block, ok := item.(map[string]any)
			if !ok {
				continue
			}
			blockType, _ := block["type"].(string)
			switch blockType {
			case "text":
				if text, ok := block["text"].(string); ok {
					texts = append(texts, text)
				}

			case "tool_use":
				id, _ := block["id"].(string)
				name, _ := block["name"].(string)
				input := block["input"]
				if input == nil {
					input = map[string]any{}
				}
				out.toolUses = append(out.toolUses, CWToolUse{
					Input:     input,
					Name:      name,
					ToolUseID: id,
				})

			case "tool_result":
				id, _ := block["tool_use_id"].(string)
				out.toolResults = append(out.toolResults, CWToolResult{
					Content:   []CWTextContent{{Text: toolResultText(block["content"])}},
					Status:    "success",
					ToolUseID: id,
				})

			case "image":
				if source, ok := block["source"].(map[string]any); ok {
					mediaType, _ := source["media_type"].(string)
					data, _ := source["data"].(string)
					out.images = append(out.images, CWImage{
						Format: imageFormat(mediaType),
						Source: CWImageSource{Bytes: data},
					})
				}
			}
		}
		out.content = strings.Join(texts, "\n")
		return out

	default:
		return out
	}
}

// toolResultText renders a tool_result content field, which may be a plain
// string, an array of text blocks, or arbitrary JSON.
func toolResultText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var parts []string
		for _, item := range v {
			if block, ok := item.(map[string]any); ok {
				if text, ok := block["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, "\n")
	case nil:
		return ""
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func imageFormat(mediaType string) string {
	if idx := strings.IndexByte(mediaType, '/'); idx >= 0 {
		return mediaType[idx+1:]
	}
	return mediaType
}

func convertAnthropicTools(tools []AnthropicTool) []CWTool {
	if len(tools) == 0 {
		return nil
	}

	var out []CWTool
	functionCount := 0
	for _, tool := range tools {
		if strings.HasPrefix(tool.Type, "web_search") {
			out = append(out, CWTool{Type: "web_search"})
			continue
		}
		if tool.Name == "" || functionCount >= maxFunctionTools {
			continue
		}
		functionCount++

		schema := tool.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		desc := tool.Description
		if desc == "" {
			desc = "Tool: " + tool.Name
		}

		out = append(out, CWTool{ToolSpecification: &ToolSpecification{
			Name:        tool.Name,
			Description: truncateDescription(desc),
			InputSchema: InputSchema{JSON: schema},
		}})
	}
	return out
}
