package groq

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"ai-voicechat-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Chat(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      string
		wantErr   bool
		wantErrIs error
	}{
		{
			name:   "returns first choice",
			status: http.StatusOK,
			body:   `{"choices":[{"message":{"content":"  Gandhi led the Salt March. "}}]}`,
			want:   "Gandhi led the Salt March.",
		},
		{
			name:      "empty choices",
			status:    http.StatusOK,
			body:      `{"choices":[]}`,
			wantErr:   true,
			wantErrIs: llm.ErrEmptyCompletion,
		},
		{
			name:      "blank content",
			status:    http.StatusOK,
			body:      `{"choices":[{"message":{"content":"   "}}]}`,
			wantErr:   true,
			wantErrIs: llm.ErrEmptyCompletion,
		},
		{
			name:    "non 200",
			status:  http.StatusTooManyRequests,
			body:    `{"error":{"message":"rate limited"}}`,
			wantErr: true,
		},
		{
			name:    "api error body",
			status:  http.StatusOK,
			body:    `{"error":{"message":"bad model"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got chatRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
				raw, _ := io.ReadAll(r.Body)
				require.NoError(t, json.Unmarshal(raw, &got))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewProvider("key", srv.URL+"/", "llama-3.3-70b-versatile", 0.3)
			answer, err := p.Chat(t.Context(), []llm.Message{{Role: "user", Content: "hi"}}, llm.WithMaxTokens(64))

			assert.Equal(t, "llama-3.3-70b-versatile", got.Model)
			assert.Equal(t, 64, got.MaxTokens)
			assert.InDelta(t, 0.3, got.Temperature, 1e-9)
			if tt.wantErr {
				require.Error(t, err)
				if tt.wantErrIs != nil {
					assert.ErrorIs(t, err, tt.wantErrIs)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, answer)
		})
	}
}
