package pipeline

import (
	"context"
	"fmt"
	"strings"

	"ai-voicechat-be/pkg/llm"
	"ai-voicechat-be/pkg/rag/prompt"
)

// LLMGenerator adapts an llm.LLMProvider to Generator. It never sends a
// prompt whose size plus the answer allowance exceeds the context limit.
type LLMGenerator struct {
	provider      llm.LLMProvider
	maxTokens     int
	contextTokens int
	temperature   float64
}

// NewLLMGenerator creates a Generator that answers with at most maxTokens
// inside a contextTokens window.
func NewLLMGenerator(provider llm.LLMProvider, maxTokens, contextTokens int, temperature float64) *LLMGenerator {
	return &LLMGenerator{
		provider:      provider,
		maxTokens:     maxTokens,
		contextTokens: contextTokens,
		temperature:   temperature,
	}
}

// Generate sends p and returns the trimmed answer. An empty answer is
// llm.ErrEmptyCompletion.
func (g *LLMGenerator) Generate(ctx context.Context, p *prompt.Prompt) (string, error) {
	if p == nil || len(p.Messages) == 0 {
		return "", fmt.Errorf("empty prompt")
	}
	if p.Tokens+g.maxTokens > g.contextTokens {
		return "", fmt.Errorf("%w: %d prompt + %d answer tokens > %d", prompt.ErrPromptTooLarge, p.Tokens, g.maxTokens, g.contextTokens)
	}

	answer, err := g.provider.Chat(ctx, p.Messages, llm.WithMaxTokens(g.maxTokens), llm.WithTemperature(g.temperature))
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", llm.ErrEmptyCompletion
	}
	return answer, nil
}
