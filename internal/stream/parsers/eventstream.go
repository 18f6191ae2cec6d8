package parsers

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Davincible/ai-gateway-go/internal/stream"
)

// Event-stream frame layout, all integers big-endian:
//
//	[total length u32][headers length u32][prelude crc u32]
//	[headers ...][payload ...][message crc u32]
//
// The prelude crc covers the first 8 bytes; the message crc covers
// everything before it.
const (
	preludeLen  = 12
	crcLen      = 4
	minFrameLen = preludeLen + crcLen

	// Frames beyond this are assumed to be stream corruption.
	maxFrameLen = 16 * 1024 * 1024
)

// EventStreamParser decodes the framed binary streaming format used by the
// CodeWhisperer-style backend into stream events. Partial frames buffer
// until the remainder arrives; frames that fail CRC validation or carry an
// unknown payload shape are skipped.
type EventStreamParser struct {
	logger        *slog.Logger
	buf           []byte
	started       bool
	stopped       bool
	model         string
	currentToolID string
	sawToolUse    bool
}

func NewEventStreamParser(model string, logger *slog.Logger) *EventStreamParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventStreamParser{logger: logger, model: model}
}

// Process appends the chunk to the internal buffer and emits events for
// every complete frame now available.
func (p *EventStreamParser) Process(chunk []byte) []stream.Event {
	p.buf = append(p.buf, chunk...)

	var events []stream.Event
	for {
		frame, ok := p.nextFrame()
		if !ok {
			break
		}
		if frame == nil {
			continue
		}
		events = append(events, p.payloadEvents(frame)...)
	}
	return events
}

// nextFrame extracts one frame payload from the buffer. The second return
// is false when the buffer holds no complete frame; a nil payload with true
// means a frame was consumed but discarded.
func (p *EventStreamParser) nextFrame() ([]byte, bool) {
	if len(p.buf) < preludeLen {
		return nil, false
	}

	total := binary.BigEndian.Uint32(p.buf[0:4])
	headersLen := binary.BigEndian.Uint32(p.buf[4:8])
	preludeCRC := binary.BigEndian.Uint32(p.buf[8:12])

	if crc32.ChecksumIEEE(p.buf[0:8]) != preludeCRC || total < minFrameLen || total > maxFrameLen {
		// Corrupt prelude. Drop one byte and resynchronize.
		p.logger.Warn("Dropping byte with invalid frame prelude")
		p.buf = p.buf[1:]
		return nil, true
	}

	if uint32(len(p.buf)) < total {
		return nil, false
	}

	frame := p.buf[:total]
	p.buf = p.buf[total:]

	messageCRC := binary.BigEndian.Uint32(frame[total-crcLen:])
	if crc32.ChecksumIEEE(frame[:total-crcLen]) != messageCRC {
		p.logger.Warn("Skipping frame with invalid message checksum")
		return nil, true
	}

	payloadStart := preludeLen + headersLen
	payloadEnd := total - crcLen
	if payloadStart > payloadEnd {
		p.logger.Warn("Skipping frame with invalid headers length")
		return nil, true
	}
	return frame[payloadStart:payloadEnd], true
}

func (p *EventStreamParser) payloadEvents(payload []byte) []stream.Event {
	if len(payload) == 0 {
		return nil
	}

	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		p.logger.Warn("Skipping frame with unparseable payload", "error", err)
		return nil
	}

	// Some frames wrap the event under assistantResponseEvent.
	if inner, ok := body["assistantResponseEvent"].(map[string]any); ok {
		body = inner
	}

	var events []stream.Event
	if !p.started {
		p.started = true
		events = append(events, stream.MessageStart("msg_"+uuid.NewString(), p.model))
	}

	if toolUse, ok := body["toolUse"].(map[string]any); ok {
		body = toolUse
	}

	switch {
	case hasKey(body, "content"):
		if text, ok := body["content"].(string); ok && text != "" {
			events = append(events, stream.TextDelta(text))
		}

	case hasKey(body, "toolUseId"):
		events = append(events, p.toolEvents(body)...)

	case hasKey(body, "usage"):
		if u, ok := body["usage"].(map[string]any); ok {
			usage := stream.TokenUsage{}
			if v, ok := u["inputTokens"].(float64); ok {
				usage.InputTokens = int(v)
			}
			if v, ok := u["outputTokens"].(float64); ok {
				usage.OutputTokens = int(v)
			}
			events = append(events, stream.UsageEvent(usage))
		}

	case hasKey(body, "credits") || hasKey(body, "contextPercentage"):
		credits, _ := body["credits"].(float64)
		pct, _ := body["contextPercentage"].(float64)
		events = append(events, stream.BackendUsageEvent(credits, pct))

	default:
		p.logger.Debug("Ignoring frame with unknown payload shape")
	}

	return events
}

func (p *EventStreamParser) toolEvents(body map[string]any) []stream.Event {
	toolID, _ := body["toolUseId"].(string)
	if toolID == "" {
		return nil
	}

	var events []stream.Event

	if name, ok := body["name"].(string); ok && name != "" && p.currentToolID != toolID {
		p.currentToolID = toolID
		p.sawToolUse = true
		events = append(events, stream.ToolUseStart(toolID, name))
	}

	if input, ok := body["input"].(string); ok && input != "" {
		events = append(events, stream.ToolUseInputDelta(toolID, input))
	}

	if stop, ok := body["stop"].(bool); ok && stop {
		if p.currentToolID == toolID {
			p.currentToolID = ""
		}
		events = append(events, stream.ToolUseStop(toolID))
	}

	return events
}

// Finish closes any open tool call and emits the terminal MessageStop once
// the transport ends; the backend framing has no stop frame of its own.
func (p *EventStreamParser) Finish() []stream.Event {
	if !p.started || p.stopped {
		return nil
	}
	p.stopped = true

	var events []stream.Event
	if p.currentToolID != "" {
		events = append(events, stream.ToolUseStop(p.currentToolID))
		p.currentToolID = ""
	}

	reason := stream.StopEndTurn
	if p.sawToolUse {
		reason = stream.StopToolUse
	}
	return append(events, stream.MessageStop(reason))
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}
