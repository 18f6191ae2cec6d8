package stream

// StopReason says why a generation ended, independent of wire protocol.
type StopReason struct {
	kind  stopKind
	other string
}

type stopKind int

const (
	stopEndTurn stopKind = iota
	stopMaxTokens
	stopToolUse
	stopSequence
	stopOther
)

var (
	StopEndTurn      = StopReason{kind: stopEndTurn}
	StopMaxTokens    = StopReason{kind: stopMaxTokens}
	StopToolUse      = StopReason{kind: stopToolUse}
	StopStopSequence = StopReason{kind: stopSequence}
)

// StopOther wraps a reason string neither protocol vocabulary covers.
func StopOther(reason string) StopReason {
	return StopReason{kind: stopOther, other: reason}
}

// OpenAI renders the reason as an OpenAI finish_reason string.
func (s StopReason) OpenAI() string {
	switch s.kind {
	case stopEndTurn:
		return "stop"
	case stopMaxTokens:
		return "length"
	case stopToolUse:
		return "tool_calls"
	case stopSequence:
		return "stop"
	default:
		return s.other
	}
}

// Anthropic renders the reason as an Anthropic stop_reason string.
func (s StopReason) Anthropic() string {
	switch s.kind {
	case stopEndTurn:
		return "end_turn"
	case stopMaxTokens:
		return "max_tokens"
	case stopToolUse:
		return "tool_use"
	case stopSequence:
		return "stop_sequence"
	default:
		return s.other
	}
}

// StopReasonFromOpenAI parses an OpenAI finish_reason string.
func StopReasonFromOpenAI(reason string) StopReason {
	switch reason {
	case "stop":
		return StopEndTurn
	case "length":
		return StopMaxTokens
	case "tool_calls":
		return StopToolUse
	default:
		return StopOther(reason)
	}
}

// StopReasonFromAnthropic parses an Anthropic stop_reason string.
func StopReasonFromAnthropic(reason string) StopReason {
	switch reason {
	case "end_turn":
		return StopEndTurn
	case "max_tokens":
		return StopMaxTokens
	case "tool_use":
		return StopToolUse
	case "stop_sequence":
		return StopStopSequence
	default:
		return StopOther(reason)
	}
}
