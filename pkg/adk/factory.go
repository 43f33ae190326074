package adk

import (
	"context"
	"fmt"
)

// NewProvider builds the LLM provider selected in the config.
func NewProvider(ctx context.Context, providerName, apiKey, modelName string) (LLMProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for %s (run 'gosec-posture config set-key %s <key>')", providerName, providerName)
	}
	switch providerName {
	case "gemini":
		return NewGeminiProvider(ctx, apiKey, modelName)
	default:
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}
}
