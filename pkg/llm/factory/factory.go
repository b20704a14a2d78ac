package factory

import (
	"fmt"

	"ai-voicechat-be/pkg/llm"
	"ai-voicechat-be/pkg/llm/groq"
	"ai-voicechat-be/pkg/llm/ollama"
)

// ProviderConfig selects and configures an LLM backend.
type ProviderConfig struct {
	Type        string // "groq" or "ollama"
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
}

// NewLLMProvider creates the provider named by cfg.Type. "openai" reuses the
// groq client against any OpenAI-compatible BaseURL.
func NewLLMProvider(cfg ProviderConfig) (llm.LLMProvider, error) {
	switch cfg.Type {
	case "groq", "openai":
		if cfg.APIKey == "" && cfg.Type == "groq" {
			return nil, fmt.Errorf("groq provider needs GROQ_API_KEY")
		}
		return groq.NewProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature), nil
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model, cfg.Temperature), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Type)
	}
}
