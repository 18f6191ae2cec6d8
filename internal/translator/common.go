package translator

import (
	"github.com/google/uuid"
)

const (
	chatTriggerManual = "MANUAL"
	originAIEditor    = "AI_EDITOR"

	// The backend has no tool_choice parameter; forcing tool use goes
	// through the system prompt instead.
	toolInstruction = "\n\n[CRITICAL INSTRUCTION] You MUST use one of the provided tools to respond. Do NOT respond with plain text. Call a tool function immediately."

	placeholderToolResults = "Tool results provided."
	placeholderContinue    = "Continue"
	placeholderUnderstood  = "I understand."

	maxFunctionTools   = 50
	maxDescriptionLen  = 500
	truncatedDescLen   = 497
	truncatedDescTail  = "..."
)

// processedMessage is the protocol-neutral intermediate both translators
// reduce their input to before the shared conversation assembly.
type processedMessage struct {
	role        string
	content     string
	toolUses    []CWToolUse
	toolResults []CWToolResult
	images      []CWImage
}

// buildConversation assembles the backend request from preprocessed
// messages: the system prompt folds into the first user message, all but
// the last message become history (with strict user/assistant alternation),
// and the last message becomes the current message.
func buildConversation(systemPrompt string, messages []processedMessage, modelID string, tools []CWTool, profileARN string) CWRequest {
	var history []HistoryItem
	startIdx := 0

	if systemPrompt != "" && len(messages) > 0 && messages[0].role == "user" {
		first := messages[0]
		userMsg := UserInputMessage{
			Content: systemPrompt + "\n\n" + first.content,
			ModelID: modelID,
			Origin:  originAIEditor,
			Images:  first.images,
		}
		if len(first.toolResults) > 0 {
			userMsg.Context = &UserInputMessageContext{ToolResults: first.toolResults}
		}
		history = append(history, HistoryItem{UserInputMessage: &userMsg})
		startIdx = 1
	}

	for i := startIdx; i < len(messages)-1; i++ {
		msg := messages[i]
		switch msg.role {
		case "user":
			content := msg.content
			if content == "" {
				if len(msg.toolResults) > 0 {
					content = placeholderToolResults
				} else {
					content = placeholderContinue
				}
			}
			userMsg := UserInputMessage{
				Content: content,
				ModelID: modelID,
				Origin:  originAIEditor,
				Images:  msg.images,
			}
			if len(msg.toolResults) > 0 {
				userMsg.Context = &UserInputMessageContext{ToolResults: msg.toolResults}
			}
			history = append(history, HistoryItem{UserInputMessage: &userMsg})

		case "assistant":
			content := msg.content
			if content == "" {
				content = placeholderUnderstood
			}
			history = append(history, HistoryItem{AssistantResponseMessage: &AssistantResponseMessage{
				Content:  content,
				ToolUses: msg.toolUses,
			}})
		}
	}

	history = fixHistoryAlternation(history, modelID)

	currentContent := placeholderContinue
	var currentToolResults []CWToolResult
	var currentImages []CWImage
	if len(messages) > 0 {
		last := messages[len(messages)-1]
		if last.role != "assistant" {
			currentContent = last.content
			if currentContent == "" {
				if len(last.toolResults) > 0 {
					currentContent = placeholderToolResults
				} else {
					currentContent = placeholderContinue
				}
			}
			currentToolResults = last.toolResults
			currentImages = last.images
		}
	}

	var context *UserInputMessageContext
	if len(tools) > 0 || len(currentToolResults) > 0 {
		context = &UserInputMessageContext{
			Tools:       tools,
			ToolResults: currentToolResults,
		}
	}

	return CWRequest{
		ConversationState: ConversationState{
			ChatTriggerType: chatTriggerManual,
			ConversationID:  uuid.NewString(),
			CurrentMessage: CurrentMessage{
				UserInputMessage: UserInputMessage{
					Content: currentContent,
					ModelID: modelID,
					Origin:  originAIEditor,
					Images:  currentImages,
					Context: context,
				},
			},
			History: history,
		},
		ProfileARN: profileARN,
	}
}

// fixHistoryAlternation repairs the history so user and assistant messages
// strictly alternate and the history ends with an assistant message.
// Consecutive user messages carrying tool results merge into the previous
// user message; other gaps are filled with placeholder turns.
func fixHistoryAlternation(history []HistoryItem, modelID string) []HistoryItem {
	if len(history) == 0 {
		return history
	}

	var fixed []HistoryItem
	for _, item := range history {
		switch {
		case item.UserInputMessage != nil:
			if last := lastItem(fixed); last != nil && last.UserInputMessage != nil {
				if results := userToolResults(item); len(results) > 0 {
					mergeToolResults(last.UserInputMessage, results)
					continue
				}
				fixed = append(fixed, assistantPlaceholder())
			}
			fixed = append(fixed, item)

		case item.AssistantResponseMessage != nil:
			if last := lastItem(fixed); last == nil || last.AssistantResponseMessage != nil {
				fixed = append(fixed, userPlaceholder(modelID))
			}
			fixed = append(fixed, item)
		}
	}

	if last := lastItem(fixed); last != nil && last.UserInputMessage != nil {
		fixed = append(fixed, assistantPlaceholder())
	}
	return fixed
}

func lastItem(items []HistoryItem) *HistoryItem {
	if len(items) == 0 {
		return nil
	}
	return &items[len(items)-1]
}

func userToolResults(item HistoryItem) []CWToolResult {
	if item.UserInputMessage == nil || item.UserInputMessage.Context == nil {
		return nil
	}
	return item.UserInputMessage.Context.ToolResults
}

func mergeToolResults(msg *UserInputMessage, results []CWToolResult) {
	if msg.Context == nil {
		msg.Context = &UserInputMessageContext{}
	}
	msg.Context.ToolResults = append(msg.Context.ToolResults, results...)
}

func assistantPlaceholder() HistoryItem {
	return HistoryItem{AssistantResponseMessage: &AssistantResponseMessage{
		Content: placeholderUnderstood,
	}}
}

func userPlaceholder(modelID string) HistoryItem {
	return HistoryItem{UserInputMessage: &UserInputMessage{
		Content: placeholderContinue,
		ModelID: modelID,
		Origin:  originAIEditor,
	}}
}

// dedupeToolResults keeps the first result per tool_use_id.
func dedupeToolResults(results []CWToolResult) []CWToolResult {
	seen := make(map[string]bool, len(results))
	out := results[:0]
	for _, r := range results {
		if seen[r.ToolUseID] {
			continue
		}
		seen[r.ToolUseID] = true
		out = append(out, r)
	}
	return out
}

func truncateDescription(desc string) string {
	if len(desc) <= maxDescriptionLen {
		return desc
	}
	runes := []rune(desc)
	if len(runes) > truncatedDescLen {
		runes = runes[:truncatedDescLen]
	}
	return string(runes) + truncatedDescTail
}

// isToolChoiceRequired detects the tool_choice forms that force tool use:
// the strings "required"/"any", or objects {"type":"any"} / {"type":"tool"}.
func isToolChoiceRequired(toolChoice any) bool {
	switch v := toolChoice.(type) {
	case string:
		return v == "required" || v == "any"
	case map[string]any:
		if t, ok := v["type"].(string); ok {
			return t == "any" || t == "tool"
		}
	}
	return false
}
