package prompt

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passage(text string, score float64) *entity.RetrievedPassage {
	return &entity.RetrievedPassage{Text: text, Score: score}
}

func TestBuilder_RetrievalOrdersByScore(t *testing.T) {
	b := NewBuilder(HeuristicTokenizer{}, 8192, 512)

	p, err := b.Retrieval("What did Gandhi lead?", []*entity.RetrievedPassage{
		passage("Gandhi studied law in London.", 0.41),
		passage("Gandhi led the Salt March in 1930.", 0.87),
		passage("He was born in Porbandar.", 0.55),
	})
	require.NoError(t, err)
	require.Len(t, p.Messages, 2)

	user := p.Messages[1].Content
	first := strings.Index(user, "Salt March")
	second := strings.Index(user, "Porbandar")
	third := strings.Index(user, "London")
	assert.True(t, first < second && second < third, "passages must follow descending score")
	assert.Contains(t, user, "[Chunk 1]\nGandhi led the Salt March in 1930.")
	assert.Contains(t, user, passageJoiner)
	assert.Equal(t, 3, p.PassagesUsed)
	assert.NotContains(t, user, NoContextMarker)
}

func TestBuilder_RetrievalNoPassagesSignalsMissingContext(t *testing.T) {
	b := NewBuilder(HeuristicTokenizer{}, 8192, 512)

	p, err := b.Retrieval("Who won the 2030 World Cup?", nil)
	require.NoError(t, err)
	assert.Contains(t, p.Messages[1].Content, NoContextMarker)
	assert.Contains(t, p.Messages[1].Content, "Who won the 2030 World Cup?")
	assert.Zero(t, p.PassagesUsed)
}

func TestBuilder_RetrievalRespectsContextBudget(t *testing.T) {
	tok := HeuristicTokenizer{}
	tests := []struct {
		name          string
		contextTokens int
		answerTokens  int
		passageRunes  []int
	}{
		{name: "three huge passages", contextTokens: 1000, answerTokens: 200, passageRunes: []int{20000, 20000, 20000}},
		{name: "one huge two small", contextTokens: 600, answerTokens: 100, passageRunes: []int{50000, 80, 120}},
		{name: "tight budget", contextTokens: 330, answerTokens: 64, passageRunes: []int{3000, 3000, 3000, 3000, 3000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(tok, tt.contextTokens, tt.answerTokens)
			var passages []*entity.RetrievedPassage
			for i, n := range tt.passageRunes {
				passages = append(passages, passage(strings.Repeat("word ", n/5), float64(len(tt.passageRunes)-i)))
			}

			p, err := b.Retrieval("What did Gandhi lead?", passages)
			require.NoError(t, err)
			assert.LessOrEqual(t, p.Tokens, b.Available())
			assert.LessOrEqual(t, p.Tokens+tt.answerTokens, tt.contextTokens)
			assert.Equal(t, CountMessages(tok, p.Messages), p.Tokens)
			assert.Contains(t, p.Messages[1].Content, "What did Gandhi lead?")
			assert.Contains(t, p.Messages[1].Content, "[Chunk 1]")
		})
	}
}

func TestBuilder_ShortPassagesKeptWhole(t *testing.T) {
	b := NewBuilder(HeuristicTokenizer{}, 700, 100)
	short := "Gandhi led the Salt March."
	p, err := b.Retrieval("q", []*entity.RetrievedPassage{
		passage(strings.Repeat("long text ", 2000), 0.9),
		passage(short, 0.8),
	})
	require.NoError(t, err)
	assert.Contains(t, p.Messages[1].Content, "[Chunk 2]\n"+short)
}

func TestBuilder_QuestionTooLarge(t *testing.T) {
	b := NewBuilder(HeuristicTokenizer{}, 200, 100)
	_, err := b.Retrieval(strings.Repeat("why ", 500), []*entity.RetrievedPassage{passage("x", 1)})
	assert.ErrorIs(t, err, ErrPromptTooLarge)
}

func TestBuilder_HistoryDropsOldestTurnsFirst(t *testing.T) {
	b := NewBuilder(HeuristicTokenizer{}, 400, 100)
	turns := []*entity.ChatTurn{
		{Role: entity.RoleUser, Content: "OLDEST " + strings.Repeat("a ", 300)},
		{Role: entity.RoleAssistant, Content: "older answer"},
		{Role: entity.RoleUser, Content: "What did Gandhi lead?"},
		{Role: entity.RoleAssistant, Content: "He led the Salt March."},
	}

	p, err := b.History("What about that?", turns)
	require.NoError(t, err)
	assert.LessOrEqual(t, p.Tokens, b.Available())

	var joined []string
	for _, m := range p.Messages {
		joined = append(joined, m.Content)
	}
	all := strings.Join(joined, "\n")
	assert.NotContains(t, all, "OLDEST")
	assert.Contains(t, all, "He led the Salt March.")
	assert.Equal(t, "What about that?", p.Messages[len(p.Messages)-1].Content)
	assert.Equal(t, "assistant", p.Messages[len(p.Messages)-2].Role)
}

func TestHeuristicTokenizer(t *testing.T) {
	tok := HeuristicTokenizer{}
	assert.Equal(t, 0, tok.Count(""))
	assert.Equal(t, 1, tok.Count("abc"))
	assert.Equal(t, 2, tok.Count("abcdefg"))

	text := strings.Repeat("Gandhi led the march. ", 100)
	for _, max := range []int{1, 5, 50, 300} {
		cut := tok.Truncate(text, max)
		assert.LessOrEqual(t, tok.Count(cut), max)
		assert.True(t, strings.HasPrefix(text, cut))
	}
	assert.Equal(t, "short", tok.Truncate("short", 10))
	assert.Equal(t, "", tok.Truncate("short", 0))
}

func articleText(sentences int) string {
	var sb strings.Builder
	for i := 1; i <= sentences; i++ {
		fmt.Fprintf(&sb, "In year %d of the campaign Gandhi addressed meeting number %d in the province. ", 1900+i, i)
		if i%12 == 0 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}

func TestBuilder_ChunkedArticleFitsBudget(t *testing.T) {
	chunks := utils.SplitText(articleText(400), 500, 100)
	require.Greater(t, len(chunks), 10)

	tests := []struct {
		name          string
		contextTokens int
		answerTokens  int
		k             int
		whole         bool
	}{
		{name: "default budget top 3", contextTokens: 8192, answerTokens: 512, k: 3, whole: true},
		{name: "default budget top 10", contextTokens: 8192, answerTokens: 512, k: 10, whole: true},
		{name: "small model top 5", contextTokens: 800, answerTokens: 128, k: 5},
	}

	tok := HeuristicTokenizer{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var passages []*entity.RetrievedPassage
			for i, c := range chunks[:tt.k] {
				passages = append(passages, passage(c, 1-float64(i)/100))
			}

			b := NewBuilder(tok, tt.contextTokens, tt.answerTokens)
			p, err := b.Retrieval("What did Gandhi do in 1930?", passages)
			require.NoError(t, err)

			assert.LessOrEqual(t, p.Tokens+tt.answerTokens, tt.contextTokens)
			assert.Equal(t, tt.k, p.PassagesUsed, "no passage may be dropped")

			user := p.Messages[1].Content
			for i, c := range chunks[:tt.k] {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), 500)
				if tt.whole {
					assert.Contains(t, user, fmt.Sprintf("[Chunk %d]\n%s", i+1, c))
				} else {
					assert.Contains(t, user, fmt.Sprintf("[Chunk %d]\n%s", i+1, string([]rune(c)[:20])))
				}
			}
		})
	}
}
