package routing

// charsPerToken approximates Gemini tokenization for English prose.
const charsPerToken = 4

const (
	economyModel = "gemini-2.5-flash"
	qualityModel = "gemini-2.5-pro"
)

// largePromptTokens is the point where the flash tier starts losing
// context and the pro tier pays for itself.
const largePromptTokens = 15000

// ModelSelector picks a generation model for callers that have no
// explicit skill mapping, routing by estimated prompt size.
type ModelSelector struct{}

func NewModelSelector() *ModelSelector {
	return &ModelSelector{}
}

// EstimateTokens approximates the token count of a prompt.
func EstimateTokens(prompt string) int {
	return len(prompt) / charsPerToken
}

// SelectModel returns the model to use for a prompt of the given
// estimated size.
func (m *ModelSelector) SelectModel(estimatedTokens int) string {
	if estimatedTokens > largePromptTokens {
		return qualityModel
	}
	return economyModel
}

// Rationale explains why a model was chosen.
func (m *ModelSelector) Rationale(selectedModel string) string {
	switch selectedModel {
	case qualityModel:
		return "large prompt, routed to the pro tier for better context handling"
	default:
		return "prompt fits comfortably, routed to the economical flash tier"
	}
}
