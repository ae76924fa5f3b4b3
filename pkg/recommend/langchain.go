package recommend

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"
)

// NewOpenAICompleter connects to an OpenAI-compatible endpoint such as
// GitHub Models or a self-hosted gateway.
func NewOpenAICompleter(baseURL, token, model string) (*openai.LLM, error) {
	if token == "" {
		return nil, fmt.Errorf("llm token is required")
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	return client, nil
}
