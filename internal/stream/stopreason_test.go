package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStopReasonMappings(t *testing.T) {
	tests := []struct {
		name      string
		reason    StopReason
		openai    string
		anthropic string
	}{
		{"end turn", StopEndTurn, "stop", "end_turn"},
		{"max tokens", StopMaxTokens, "length", "max_tokens"},
		{"tool use", StopToolUse, "tool_calls", "tool_use"},
		{"stop sequence", StopStopSequence, "stop", "stop_sequence"},
		{"other", StopOther("content_filter"), "content_filter", "content_filter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.openai, tt.reason.OpenAI())
			assert.Equal(t, tt.anthropic, tt.reason.Anthropic())
		})
	}
}

func TestStopReasonParsing(t *testing.T) {
	assert.Equal(t, StopEndTurn, StopReasonFromOpenAI("stop"))
	assert.Equal(t, StopMaxTokens, StopReasonFromOpenAI("length"))
	assert.Equal(t, StopToolUse, StopReasonFromOpenAI("tool_calls"))
	assert.Equal(t, StopOther("content_filter"), StopReasonFromOpenAI("content_filter"))

	assert.Equal(t, StopEndTurn, StopReasonFromAnthropic("end_turn"))
	assert.Equal(t, StopMaxTokens, StopReasonFromAnthropic("max_tokens"))
	assert.Equal(t, StopToolUse, StopReasonFromAnthropic("tool_use"))
	assert.Equal(t, StopStopSequence, StopReasonFromAnthropic("stop_sequence"))
}

func TestEventConstructors(t *testing.T) {
	ev := ToolUseStart("tool_1", "bash")
	assert.Equal(t, EventToolUseStart, ev.Type)
	assert.Equal(t, "tool_1", ev.ToolID)
	assert.Equal(t, "bash", ev.ToolName)

	ev = UsageEvent(TokenUsage{InputTokens: 10, OutputTokens: 5})
	assert.Equal(t, EventUsage, ev.Type)
	assert.Equal(t, 10, ev.Usage.InputTokens)
	assert.Equal(t, 5, ev.Usage.OutputTokens)
}
