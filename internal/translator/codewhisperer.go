// Package translator converts client-facing chat requests into the
// CodeWhisperer-style backend request shape. Translators are pure: they
// never perform network I/O.
package translator

// CWRequest is the backend-native request envelope.
type CWRequest struct {
	ConversationState ConversationState `json:"conversationState"`
	ProfileARN        string            `json:"profileArn,omitempty"`
}

type ConversationState struct {
	ChatTriggerType string         `json:"chatTriggerType"`
	ConversationID  string         `json:"conversationId"`
	CurrentMessage  CurrentMessage `json:"currentMessage"`
	History         []HistoryItem  `json:"history,omitempty"`
}

type CurrentMessage struct {
	UserInputMessage UserInputMessage `json:"userInputMessage"`
}

type UserInputMessage struct {
	Content string                   `json:"content"`
	ModelID string                   `json:"modelId"`
	Origin  string                   `json:"origin"`
	Images  []CWImage                `json:"images,omitempty"`
	Context *UserInputMessageContext `json:"userInputMessageContext,omitempty"`
}

type UserInputMessageContext struct {
	Tools       []CWTool       `json:"tools,omitempty"`
	ToolResults []CWToolResult `json:"toolResults,omitempty"`
}

// CWTool is either a standard tool (ToolSpecification set) or a special
// tool identified only by Type, e.g. web search.
type CWTool struct {
	ToolSpecification *ToolSpecification `json:"toolSpecification,omitempty"`
	Type              string             `json:"type,omitempty"`
}

type ToolSpecification struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

type InputSchema struct {
	JSON any `json:"json"`
}

type CWToolResult struct {
	Content   []CWTextContent `json:"content"`
	Status    string          `json:"status"`
	ToolUseID string          `json:"toolUseId"`
}

type CWTextContent struct {
	Text string `json:"text"`
}

type CWImage struct {
	Format string        `json:"format"`
	Source CWImageSource `json:"source"`
}

type CWImageSource struct {
	Bytes string `json:"bytes"`
}

// HistoryItem holds exactly one of the two message kinds; the wire format
// distinguishes them by which key is present.
type HistoryItem struct {
	UserInputMessage         *UserInputMessage         `json:"userInputMessage,omitempty"`
	AssistantResponseMessage *AssistantResponseMessage `json:"assistantResponseMessage,omitempty"`
}

type AssistantResponseMessage struct {
	Content  string      `json:"content"`
	ToolUses []CWToolUse `json:"toolUses,omitempty"`
}

type CWToolUse struct {
	Input     any    `json:"input"`
	Name      string `json:"name"`
	ToolUseID string `json:"toolUseId"`
}
