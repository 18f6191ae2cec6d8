package parsers

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/ai-gateway-go/internal/stream"
)

func encodeFrame(t *testing.T, payload string) []byte {
	t.Helper()

	total := uint32(preludeLen + len(payload) + crcLen)
	frame := make([]byte, 0, total)

	prelude := make([]byte, 8)
	binary.BigEndian.PutUint32(prelude[0:4], total)
	binary.BigEndian.PutUint32(prelude[4:8], 0)
	frame = append(frame, prelude...)
	frame = binary.BigEndian.AppendUint32(frame, crc32.ChecksumIEEE(prelude))
	frame = append(frame, payload...)
	return binary.BigEndian.AppendUint32(frame, crc32.ChecksumIEEE(frame))
}

func TestEventStreamParserTextFrames(t *testing.T) {
	p := NewEventStreamParser("claude-sonnet-4", nil)

	events := p.Process(encodeFrame(t, `{"content":"Hello"}`))
	require.Len(t, events, 2)
	assert.Equal(t, stream.EventMessageStart, events[0].Type)
	assert.Equal(t, "claude-sonnet-4", events[0].Model)
	assert.NotEmpty(t, events[0].MessageID)
	assert.Equal(t, stream.EventTextDelta, events[1].Type)
	assert.Equal(t, "Hello", events[1].Text)

	events = p.Process(encodeFrame(t, `{"content":" World"}`))
	require.Len(t, events, 1)
	assert.Equal(t, " World", events[0].Text)

	events = p.Finish()
	require.Len(t, events, 1)
	assert.Equal(t, stream.EventMessageStop, events[0].Type)
	assert.Equal(t, "end_turn", events[0].StopReason.Anthropic())
}

func TestEventStreamParserPartialFrames(t *testing.T) {
	p := NewEventStreamParser("m", nil)

	frame := encodeFrame(t, `{"content":"Hi"}`)
	assert.Empty(t, p.Process(frame[:7]))
	assert.Empty(t, p.Process(frame[7:len(frame)-3]))

	events := p.Process(frame[len(frame)-3:])
	require.Len(t, events, 2)
	assert.Equal(t, "Hi", events[1].Text)
}

func TestEventStreamParserToolUse(t *testing.T) {
	p := NewEventStreamParser("m", nil)

	var events []stream.Event
	events = append(events, p.Process(encodeFrame(t, `{"toolUseId":"tool_1","name":"bash"}`))...)
	events = append(events, p.Process(encodeFrame(t, `{"toolUseId":"tool_1","input":"{\"cmd\":"}`))...)
	events = append(events, p.Process(encodeFrame(t, `{"toolUseId":"tool_1","input":"\"ls\"}"}`))...)
	events = append(events, p.Process(encodeFrame(t, `{"toolUseId":"tool_1","stop":true}`))...)
	events = append(events, p.Finish()...)

	assert.Equal(t, []stream.EventType{
		stream.EventMessageStart,
		stream.EventToolUseStart,
		stream.EventToolUseInputDelta,
		stream.EventToolUseInputDelta,
		stream.EventToolUseStop,
		stream.EventMessageStop,
	}, eventTypes(events))

	assert.Equal(t, "tool_use", events[len(events)-1].StopReason.Anthropic())
}

func TestEventStreamParserWrappedAssistantEvent(t *testing.T) {
	p := NewEventStreamParser("m", nil)

	events := p.Process(encodeFrame(t, `{"assistantResponseEvent":{"content":"nested"}}`))
	require.Len(t, events, 2)
	assert.Equal(t, "nested", events[1].Text)
}

func TestEventStreamParserSkipsCorruptFrame(t *testing.T) {
	p := NewEventStreamParser("m", nil)

	bad := encodeFrame(t, `{"content":"lost"}`)
	bad[len(bad)-1] ^= 0xff

	assert.Empty(t, p.Process(bad))

	events := p.Process(encodeFrame(t, `{"content":"ok"}`))
	require.Len(t, events, 2)
	assert.Equal(t, "ok", events[1].Text)
}

func TestEventStreamParserIgnoresUnknownPayload(t *testing.T) {
	p := NewEventStreamParser("m", nil)

	events := p.Process(encodeFrame(t, `{"somethingElse":1}`))
	require.Len(t, events, 1)
	assert.Equal(t, stream.EventMessageStart, events[0].Type)
}

func TestEventStreamParserBackendUsage(t *testing.T) {
	p := NewEventStreamParser("m", nil)

	events := p.Process(encodeFrame(t, `{"credits":1.5,"contextPercentage":42.0}`))
	require.Len(t, events, 2)
	assert.Equal(t, stream.EventBackendUsage, events[1].Type)
	assert.InDelta(t, 1.5, events[1].Backend.Credits, 1e-9)
	assert.InDelta(t, 42.0, events[1].Backend.ContextPercentage, 1e-9)
}
