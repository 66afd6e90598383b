package factory

import (
	"fmt"

	"docqa-engine/pkg/llm"
	"docqa-engine/pkg/llm/ollama"
	"docqa-engine/pkg/llm/openai"
)

func NewCompletionProvider(providerType, modelName, baseURL, apiKey string) (llm.CompletionProvider, error) {
	switch providerType {
	case "ollama":
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "openai":
		return openai.NewOpenAIProvider(apiKey, baseURL, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", providerType)
	}
}
