package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/ai-gateway-go/internal/stream"
)

func TestOpenAISSEParserTextDeltas(t *testing.T) {
	p := NewOpenAISSEParser(nil)

	text, done, _ := p.ParseData(`{"choices":[{"delta":{"content":"Hello"}}]}`)
	assert.Equal(t, "Hello", text)
	assert.False(t, done)

	text, done, _ = p.ParseData(`{"choices":[{"delta":{"content":" World"}}]}`)
	assert.Equal(t, " World", text)
	assert.False(t, done)

	text, done, _ = p.ParseData(`{"choices":[{"delta":{},"finish_reason":"stop"}]}`)
	assert.Empty(t, text)
	assert.True(t, done)

	assert.Equal(t, "Hello World", p.FullContent())
}

func TestOpenAISSEParserToolCalls(t *testing.T) {
	p := NewOpenAISSEParser(nil)

	p.ParseData(`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_123","type":"function","function":{"name":"bash"}}]}}]}`)
	p.ParseData(`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"command\":"}}]}}]}`)
	p.ParseData(`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"ls -la\"}"}}]}}]}`)
	_, done, _ := p.ParseData(`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`)

	assert.True(t, done)
	assert.True(t, p.HasToolCalls())

	calls := p.FinalizeToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "call_123", calls[0].ID)
	assert.Equal(t, "function", calls[0].Type)
	assert.Equal(t, "bash", calls[0].Name)
	assert.Equal(t, `{"command":"ls -la"}`, calls[0].Arguments)
}

func TestOpenAISSEParserMultipleToolCallsSorted(t *testing.T) {
	p := NewOpenAISSEParser(nil)

	p.ParseData(`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_b","function":{"name":"read","arguments":"{}"}}]}}]}`)
	p.ParseData(`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a","function":{"name":"bash","arguments":"{}"}}]}}]}`)

	calls := p.FinalizeToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "call_a", calls[0].ID)
	assert.Equal(t, "call_b", calls[1].ID)
}

func TestOpenAISSEParserDropsIncompleteToolCalls(t *testing.T) {
	p := NewOpenAISSEParser(nil)

	p.ParseData(`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{}"}}]}}]}`)

	assert.True(t, p.HasToolCalls())
	assert.Empty(t, p.FinalizeToolCalls())
}

func TestOpenAISSEParserDoneSentinel(t *testing.T) {
	p := NewOpenAISSEParser(nil)

	text, done, usage := p.ParseData("[DONE]")
	assert.Empty(t, text)
	assert.True(t, done)
	assert.Nil(t, usage)
}

func TestOpenAISSEParserUsage(t *testing.T) {
	p := NewOpenAISSEParser(nil)

	text, _, usage := p.ParseData(`{"choices":[{"delta":{"content":"Hi"}}],"usage":{"prompt_tokens":10,"completion_tokens":5}}`)
	assert.Equal(t, "Hi", text)
	require.NotNil(t, usage)
	assert.Equal(t, 10, usage.InputTokens)
	assert.Equal(t, 5, usage.OutputTokens)
}

func TestOpenAISSEParserInvalidJSON(t *testing.T) {
	p := NewOpenAISSEParser(nil)

	text, done, usage := p.ParseData(`{not json`)
	assert.Empty(t, text)
	assert.False(t, done)
	assert.Nil(t, usage)
}

func eventTypes(events []stream.Event) []stream.EventType {
	types := make([]stream.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestOpenAIParserEmitsEvents(t *testing.T) {
	p := NewOpenAIParser(nil)

	events := p.Process([]byte("data: {\"id\":\"chatcmpl-1\",\"model\":\"gpt-4o\",\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n"))
	require.Len(t, events, 2)
	assert.Equal(t, stream.EventMessageStart, events[0].Type)
	assert.Equal(t, "chatcmpl-1", events[0].MessageID)
	assert.Equal(t, "gpt-4o", events[0].Model)
	assert.Equal(t, stream.EventTextDelta, events[1].Type)
	assert.Equal(t, "Hi", events[1].Text)
}

func TestOpenAIParserSplitChunks(t *testing.T) {
	p := NewOpenAIParser(nil)

	data := "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n"
	events := p.Process([]byte(data[:20]))
	assert.Empty(t, events)

	events = p.Process([]byte(data[20:]))
	require.Len(t, events, 2)
	assert.Equal(t, "Hello", events[1].Text)
}

func TestOpenAIParserToolCallFlow(t *testing.T) {
	p := NewOpenAIParser(nil)

	var events []stream.Event
	events = append(events, p.Process([]byte("data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"type\":\"function\",\"function\":{\"name\":\"bash\"}}]}}]}\n"))...)
	events = append(events, p.Process([]byte("data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"{}\"}}]}}]}\n"))...)
	events = append(events, p.Process([]byte("data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"tool_calls\"}]}\n"))...)

	assert.Equal(t, []stream.EventType{
		stream.EventMessageStart,
		stream.EventToolUseStart,
		stream.EventToolUseInputDelta,
		stream.EventToolUseStop,
		stream.EventMessageStop,
	}, eventTypes(events))

	stop := events[len(events)-1]
	assert.Equal(t, "tool_calls", stop.StopReason.OpenAI())
}

func TestOpenAIParserDoneWithoutFinishReason(t *testing.T) {
	p := NewOpenAIParser(nil)

	p.Process([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n"))
	events := p.Process([]byte("data: [DONE]\n"))

	require.Len(t, events, 1)
	assert.Equal(t, stream.EventMessageStop, events[0].Type)

	// Transport close after [DONE] adds nothing.
	assert.Empty(t, p.Finish())
}

func TestOpenAIParserFinishClosesOpenStream(t *testing.T) {
	p := NewOpenAIParser(nil)

	p.Process([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n"))
	events := p.Finish()

	require.Len(t, events, 1)
	assert.Equal(t, stream.EventMessageStop, events[0].Type)
	assert.Equal(t, "stop", events[0].StopReason.OpenAI())
}
