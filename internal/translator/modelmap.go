package translator

// DefaultModel is used when the requested model has no backend mapping.
const DefaultModel = "CLAUDE_SONNET_4_5_20250929_V1_0"

var modelMap = map[string]string{
	// Opus 4.5
	"claude-opus-4-5":          "claude-opus-4.5",
	"claude-opus-4-5-20251101": "claude-opus-4.5",
	// Haiku 4.5
	"claude-haiku-4-5":          "claude-haiku-4.5",
	"claude-haiku-4-5-20251001": "claude-haiku-4.5",
	// Sonnet 4.5
	"claude-sonnet-4-5":          "CLAUDE_SONNET_4_5_20250929_V1_0",
	"claude-sonnet-4-5-20250929": "CLAUDE_SONNET_4_5_20250929_V1_0",
	// Sonnet 4
	"claude-sonnet-4-20250514": "CLAUDE_SONNET_4_20250514_V1_0",
	// Sonnet 3.7/3.5, kept for older clients
	"claude-3-7-sonnet-20250219": "CLAUDE_3_7_SONNET_20250219_V1_0",
	"claude-3-5-sonnet-20241022": "CLAUDE_3_7_SONNET_20250219_V1_0",
	"claude-3-5-sonnet-latest":   "CLAUDE_3_7_SONNET_20250219_V1_0",
}

// MapModel resolves a client-facing model name to the backend-native id,
// falling back to DefaultModel.
func MapModel(model string) string {
	if mapped, ok := modelMap[model]; ok {
		return mapped
	}
	return DefaultModel
}
