package ai

import (
	"strings"

	"google.golang.org/genai"
)

// extractUsage reads the token counts from the response usage metadata.
func extractUsage(resp *genai.GenerateContentResponse) (inputTokens, outputTokens int) {
	if resp == nil || resp.UsageMetadata == nil {
		return 0, 0
	}
	return int(resp.UsageMetadata.PromptTokenCount), int(resp.UsageMetadata.CandidatesTokenCount)
}

// extractText concatenates the text parts of all candidates, skipping
// thinking parts.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var out strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			out.WriteString(part.Text)
		}
	}
	return out.String()
}
