package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/ai-gateway-go/internal/stream"
)

func feedLines(p *AnthropicParser, lines ...string) []stream.Event {
	var events []stream.Event
	for _, line := range lines {
		events = append(events, p.Process([]byte(line+"\n"))...)
	}
	return events
}

func TestAnthropicParserTextMessage(t *testing.T) {
	p := NewAnthropicParser(nil)

	events := feedLines(p,
		`event: message_start`,
		`data: {"type":"message_start","message":{"id":"msg_1","model":"claude-sonnet-4","usage":{"input_tokens":12}}}`,
		`event: content_block_start`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hi"}}`,
		`data: {"type":"content_block_stop","index":0}`,
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":4}}`,
		`data: {"type":"message_stop"}`,
	)

	assert.Equal(t, []stream.EventType{
		stream.EventMessageStart,
		stream.EventUsage,
		stream.EventContentBlockStart,
		stream.EventTextDelta,
		stream.EventContentBlockStop,
		stream.EventUsage,
		stream.EventMessageStop,
	}, eventTypes(events))

	assert.Equal(t, "msg_1", events[0].MessageID)
	assert.Equal(t, "claude-sonnet-4", events[0].Model)
	assert.Equal(t, 12, events[1].Usage.InputTokens)
	assert.Equal(t, "Hi", events[3].Text)
	assert.Equal(t, 4, events[5].Usage.OutputTokens)
	assert.Equal(t, "end_turn", events[6].StopReason.Anthropic())
}

func TestAnthropicParserToolUse(t *testing.T) {
	p := NewAnthropicParser(nil)

	events := feedLines(p,
		`data: {"type":"message_start","message":{"id":"msg_2","model":"claude-sonnet-4"}}`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"bash"}}`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"cmd\":\"ls\"}"}}`,
		`data: {"type":"content_block_stop","index":0}`,
		`data: {"type":"message_delta","delta":{"stop_reason":"tool_use"}}`,
	)

	assert.Equal(t, []stream.EventType{
		stream.EventMessageStart,
		stream.EventContentBlockStart,
		stream.EventToolUseStart,
		stream.EventToolUseInputDelta,
		stream.EventToolUseStop,
		stream.EventContentBlockStop,
		stream.EventMessageStop,
	}, eventTypes(events))

	assert.Equal(t, "toolu_1", events[2].ToolID)
	assert.Equal(t, "bash", events[2].ToolName)
	assert.Equal(t, `{"cmd":"ls"}`, events[3].PartialJSON)
}

func TestAnthropicParserPingAndError(t *testing.T) {
	p := NewAnthropicParser(nil)

	events := feedLines(p,
		`data: {"type":"ping"}`,
		`data: {"type":"error","error":{"type":"overloaded_error","message":"busy"}}`,
	)

	require.Len(t, events, 2)
	assert.Equal(t, stream.EventPing, events[0].Type)
	assert.Equal(t, stream.EventError, events[1].Type)
	assert.Equal(t, "overloaded_error", events[1].ErrorType)
	assert.Equal(t, "busy", events[1].ErrorMessage)
}

func TestAnthropicParserFinishClosesOpenBlocks(t *testing.T) {
	p := NewAnthropicParser(nil)

	feedLines(p,
		`data: {"type":"message_start","message":{"id":"msg_3","model":"m"}}`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_2","name":"read"}}`,
	)

	events := p.Finish()
	assert.Equal(t, []stream.EventType{
		stream.EventToolUseStop,
		stream.EventContentBlockStop,
		stream.EventMessageStop,
	}, eventTypes(events))
}
