package pipeline

import (
	"context"
	"strings"
	"testing"

	"ai-voicechat-be/pkg/llm"
	"ai-voicechat-be/pkg/rag/prompt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMGenerator(t *testing.T) {
	msgs := []llm.Message{{Role: "user", Content: "q"}}

	tests := []struct {
		name    string
		tokens  int
		answer  string
		wantErr error
		called  bool
	}{
		{"fits", 100, " The Salt March. ", nil, true},
		{"exactly at the limit", 768, "ok", nil, true},
		{"over the limit", 769, "ok", prompt.ErrPromptTooLarge, false},
		{"empty completion", 100, "   ", llm.ErrEmptyCompletion, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &recordingProvider{tok: prompt.HeuristicTokenizer{}, answer: tt.answer}
			g := NewLLMGenerator(provider, 256, 1024, 0.3)

			got, err := g.Generate(context.Background(), &prompt.Prompt{Messages: msgs, Tokens: tt.tokens})
			assert.Equal(t, tt.called, provider.received == 1)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, got)
			assert.Equal(t, strings.TrimSpace(tt.answer), got)
		})
	}
}
