package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/internal/pkg/logger"
	"ai-voicechat-be/pkg/llm"
	"ai-voicechat-be/pkg/rag/prompt"

	"github.com/patrickmn/go-cache"
)

// VerdictTTL bounds how long a memoized routing verdict is kept.
const VerdictTTL = time.Hour

// ModelAssisted asks the generator a YES/NO question at temperature 0.
// Verdicts, including the retrieval fallback for an unparseable reply, are
// memoized per (history, question) for VerdictTTL so a repeated call cannot
// flip even if the backend is not fully deterministic. Empty history never
// reaches the model. Provider failures are returned to the caller.
type ModelAssisted struct {
	provider llm.LLMProvider
	builder  *prompt.Builder
	window   int
	verdicts *cache.Cache
	logger   logger.ILogger
}

// NewModelAssisted creates a router that consults provider over the last
// window turns.
func NewModelAssisted(provider llm.LLMProvider, builder *prompt.Builder, window int, log logger.ILogger) *ModelAssisted {
	if window <= 0 {
		window = 6
	}
	return &ModelAssisted{
		provider: provider,
		builder:  builder,
		window:   window,
		verdicts: cache.New(VerdictTTL, VerdictTTL/2),
		logger:   log,
	}
}

func cacheKey(question string, turns []*entity.ChatTurn) string {
	h := sha256.New()
	for _, t := range turns {
		h.Write([]byte(t.Role))
		h.Write([]byte{0})
		h.Write([]byte(t.Content))
		h.Write([]byte{0})
	}
	h.Write([]byte(question))
	return hex.EncodeToString(h.Sum(nil))
}

// Decide implements Router.
func (m *ModelAssisted) Decide(ctx context.Context, question string, history []*entity.ChatTurn) (Decision, error) {
	recent := window(history, m.window)
	if len(recent) == 0 {
		return Decision{Route: RouteRetrieval, Reason: "empty history"}, nil
	}

	key := cacheKey(question, recent)
	if v, ok := m.verdicts.Get(key); ok {
		return v.(Decision), nil
	}

	p, err := m.builder.Routing(question, recent)
	if err != nil {
		return Decision{Route: RouteRetrieval, Reason: "routing prompt too large"}, nil
	}

	reply, err := m.provider.Chat(ctx, p.Messages, llm.WithTemperature(0), llm.WithMaxTokens(3))
	if err != nil {
		if ctx.Err() != nil {
			return Decision{}, ctx.Err()
		}
		return Decision{}, fmt.Errorf("routing model: %w", err)
	}

	verdict := strings.ToUpper(strings.TrimSpace(reply))
	var d Decision
	switch {
	case strings.HasPrefix(verdict, "YES"):
		d = Decision{Route: RouteHistory, Reason: "model: answerable from history"}
	case strings.HasPrefix(verdict, "NO"):
		d = Decision{Route: RouteRetrieval, Reason: "model: needs retrieval"}
	default:
		m.logger.Warn("ROUTER", "Unparseable routing reply", map[string]interface{}{"reply": reply})
		d = Decision{Route: RouteRetrieval, Reason: "unparseable routing reply"}
	}

	m.verdicts.SetDefault(key, d)
	return d, nil
}
