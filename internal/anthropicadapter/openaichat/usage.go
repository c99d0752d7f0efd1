package openaichat

import (
	"github.com/openai/openai-go/v3"

	"github.com/claudebridge/claudebridge/internal/anthropicadapter/types"
)

// toUsage maps backend token accounting onto the Anthropic usage shape.
func toUsage(usage openai.CompletionUsage) types.Usage {
	return types.Usage{
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
	}
}
