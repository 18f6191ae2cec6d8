// Package stream defines the protocol-neutral event vocabulary shared by
// backend parsers and client-facing generators, plus the pipeline that
// connects them.
//
// Backend bytes -> parser -> Event -> generator -> client SSE frames.
package stream

import "fmt"

// EventType discriminates the Event union.
type EventType int

const (
	EventMessageStart EventType = iota
	EventContentBlockStart
	EventTextDelta
	EventToolUseStart
	EventToolUseInputDelta
	EventToolUseStop
	EventContentBlockStop
	EventMessageStop
	EventUsage
	EventBackendUsage
	EventError
	EventPing
)

func (t EventType) String() string {
	switch t {
	case EventMessageStart:
		return "message_start"
	case EventContentBlockStart:
		return "content_block_start"
	case EventTextDelta:
		return "text_delta"
	case EventToolUseStart:
		return "tool_use_start"
	case EventToolUseInputDelta:
		return "tool_use_input_delta"
	case EventToolUseStop:
		return "tool_use_stop"
	case EventContentBlockStop:
		return "content_block_stop"
	case EventMessageStop:
		return "message_stop"
	case EventUsage:
		return "usage"
	case EventBackendUsage:
		return "backend_usage"
	case EventError:
		return "error"
	case EventPing:
		return "ping"
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// ContentBlockType identifies what a content block carries.
type ContentBlockType int

const (
	BlockText ContentBlockType = iota
	BlockToolUse
)

func (b ContentBlockType) String() string {
	if b == BlockToolUse {
		return "tool_use"
	}
	return "text"
}

// TokenUsage carries token counts reported by a backend.
type TokenUsage struct {
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
}

// BackendUsage carries provider-proprietary quota signals.
type BackendUsage struct {
	Credits           float64
	ContextPercentage float64
}

// Event is the tagged union every parser emits and every generator consumes.
// Only the fields relevant to Type are populated; the rest stay zero.
type Event struct {
	Type EventType

	// MessageStart
	MessageID string
	Model     string

	// ContentBlockStart / ContentBlockStop
	Index     int
	BlockType ContentBlockType

	// TextDelta
	Text string

	// ToolUseStart / ToolUseInputDelta / ToolUseStop
	ToolID      string
	ToolName    string
	PartialJSON string

	// MessageStop
	StopReason StopReason

	// Usage / BackendUsage
	Usage   *TokenUsage
	Backend *BackendUsage

	// Error
	ErrorType    string
	ErrorMessage string
}

func MessageStart(id, model string) Event {
	return Event{Type: EventMessageStart, MessageID: id, Model: model}
}

func ContentBlockStart(index int, blockType ContentBlockType) Event {
	return Event{Type: EventContentBlockStart, Index: index, BlockType: blockType}
}

func TextDelta(text string) Event {
	return Event{Type: EventTextDelta, Text: text}
}

func ToolUseStart(id, name string) Event {
	return Event{Type: EventToolUseStart, ToolID: id, ToolName: name}
}

func ToolUseInputDelta(id, partialJSON string) Event {
	return Event{Type: EventToolUseInputDelta, ToolID: id, PartialJSON: partialJSON}
}

func ToolUseStop(id string) Event {
	return Event{Type: EventToolUseStop, ToolID: id}
}

func ContentBlockStop(index int) Event {
	return Event{Type: EventContentBlockStop, Index: index}
}

func MessageStop(reason StopReason) Event {
	return Event{Type: EventMessageStop, StopReason: reason}
}

func UsageEvent(usage TokenUsage) Event {
	return Event{Type: EventUsage, Usage: &usage}
}

func BackendUsageEvent(credits, contextPercentage float64) Event {
	return Event{Type: EventBackendUsage, Backend: &BackendUsage{Credits: credits, ContextPercentage: contextPercentage}}
}

func ErrorEvent(errorType, message string) Event {
	return Event{Type: EventError, ErrorType: errorType, ErrorMessage: message}
}

func Ping() Event {
	return Event{Type: EventPing}
}

// ToolCallState accumulates one in-flight tool call for the lifetime of its
// content block. Input fragments concatenate to valid JSON only once the
// tool call is stopped.
type ToolCallState struct {
	ID    string
	Name  string
	Input string
	Index int
}
