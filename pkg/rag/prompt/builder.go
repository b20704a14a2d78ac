// Package prompt assembles generator prompts under a token budget.
package prompt

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/pkg/llm"
)

const (
	messageOverhead = 4
	replyPriming    = 2
	passageJoiner   = "\n\n---\n\n"

	NoContextMarker = "NO RELEVANT CONTEXT FOUND"
)

var ErrPromptTooLarge = errors.New("prompt does not fit the model context")

// Prompt is a message list ready for the generator.
type Prompt struct {
	Messages []llm.Message
	Tokens   int
	// PassagesUsed counts passages that kept any text after truncation.
	PassagesUsed int
}

// Builder assembles prompts that, with the answer allowance, fit the
// generator context.
type Builder struct {
	tok           Tokenizer
	contextTokens int
	answerTokens  int
}

// NewBuilder creates a Builder for a contextTokens window that reserves
// answerTokens for the reply.
func NewBuilder(tok Tokenizer, contextTokens, answerTokens int) *Builder {
	if tok == nil {
		tok = HeuristicTokenizer{}
	}
	return &Builder{tok: tok, contextTokens: contextTokens, answerTokens: answerTokens}
}

// Tokenizer returns the tokenizer prompts are measured with.
func (b *Builder) Tokenizer() Tokenizer {
	return b.tok
}

// Available is the prompt budget once the answer allowance is reserved.
func (b *Builder) Available() int {
	return b.contextTokens - b.answerTokens
}

// CountMessages approximates chat-format token usage.
func CountMessages(tok Tokenizer, msgs []llm.Message) int {
	total := replyPriming
	for _, m := range msgs {
		total += tok.Count(m.Content) + messageOverhead
	}
	return total
}

func (b *Builder) finish(msgs []llm.Message, used int) (*Prompt, error) {
	tokens := CountMessages(b.tok, msgs)
	if tokens > b.Available() {
		return nil, fmt.Errorf("%w: %d tokens, %d available", ErrPromptTooLarge, tokens, b.Available())
	}
	return &Prompt{Messages: msgs, Tokens: tokens, PassagesUsed: used}, nil
}

// History builds the recall prompt: the recent turns verbatim, then the
// question. Oldest turns are dropped first when the budget is short.
func (b *Builder) History(question string, turns []*entity.ChatTurn) (*Prompt, error) {
	system := llm.Message{Role: "system", Content: historySystemPrompt}
	user := llm.Message{Role: "user", Content: question}

	for start := 0; start <= len(turns); start++ {
		msgs := []llm.Message{system}
		for _, t := range turns[start:] {
			msgs = append(msgs, llm.Message{Role: string(t.Role), Content: t.Content})
		}
		msgs = append(msgs, user)
		if CountMessages(b.tok, msgs) <= b.Available() {
			return b.finish(msgs, 0)
		}
	}
	return b.finish([]llm.Message{system, user}, 0)
}

// Retrieval builds the grounded prompt. Passages are ordered by descending
// score and each one is cut to its share of the remaining budget.
func (b *Builder) Retrieval(question string, passages []*entity.RetrievedPassage) (*Prompt, error) {
	system := llm.Message{Role: "system", Content: retrievalSystemPrompt}

	if len(passages) == 0 {
		return b.finish([]llm.Message{system, {Role: "user", Content: renderRetrieval(question, nil)}}, 0)
	}

	ordered := make([]*entity.RetrievedPassage, len(passages))
	copy(ordered, passages)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Score > ordered[j].Score })

	texts := make([]string, len(ordered))
	for i, p := range ordered {
		texts[i] = p.Text
	}

	skeleton := []llm.Message{system, {Role: "user", Content: renderRetrieval(question, make([]string, len(ordered)))}}
	remaining := b.Available() - CountMessages(b.tok, skeleton)
	if remaining < 0 {
		return nil, fmt.Errorf("%w: question alone needs %d more tokens", ErrPromptTooLarge, -remaining)
	}

	// Joining can merge tokens across boundaries, so shrink until it fits.
	for budget := remaining; ; budget = budget * 9 / 10 {
		cut := b.allocate(texts, budget)
		msgs := []llm.Message{system, {Role: "user", Content: renderRetrieval(question, cut)}}
		if CountMessages(b.tok, msgs) <= b.Available() || budget == 0 {
			used := 0
			for _, c := range cut {
				if c != "" {
					used++
				}
			}
			return b.finish(msgs, used)
		}
	}
}

// allocate splits budget across texts. Short texts keep their full length
// and hand the unused share to longer ones.
func (b *Builder) allocate(texts []string, budget int) []string {
	type item struct {
		idx    int
		tokens int
	}
	items := make([]item, len(texts))
	for i, t := range texts {
		items[i] = item{idx: i, tokens: b.tok.Count(t)}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].tokens < items[j].tokens })

	out := make([]string, len(texts))
	left := budget
	for n, it := range items {
		share := left / (len(items) - n)
		if it.tokens <= share {
			out[it.idx] = texts[it.idx]
			left -= it.tokens
			continue
		}
		out[it.idx] = b.tok.Truncate(texts[it.idx], share)
		left -= b.tok.Count(out[it.idx])
	}
	return out
}

// Routing asks for a one-word verdict on whether history suffices.
func (b *Builder) Routing(question string, turns []*entity.ChatTurn) (*Prompt, error) {
	var transcript strings.Builder
	for _, t := range turns {
		transcript.WriteString(string(t.Role))
		transcript.WriteString(": ")
		transcript.WriteString(t.Content)
		transcript.WriteString("\n")
	}

	content := fmt.Sprintf("<conversation>\n%s</conversation>\n\n<question>\n%s\n</question>", transcript.String(), question)
	msgs := []llm.Message{
		{Role: "system", Content: routingSystemPrompt},
		{Role: "user", Content: b.tok.Truncate(content, b.Available()/2)},
	}
	return b.finish(msgs, 0)
}

func renderRetrieval(question string, passages []string) string {
	var sb strings.Builder

	sb.WriteString("<context>\n")
	if len(passages) == 0 {
		sb.WriteString(NoContextMarker)
		sb.WriteString(": the knowledge base returned nothing relevant to this question.\n")
	} else {
		blocks := make([]string, len(passages))
		for i, p := range passages {
			blocks[i] = fmt.Sprintf("[Chunk %d]\n%s", i+1, p)
		}
		sb.WriteString(strings.Join(blocks, passageJoiner))
		sb.WriteString("\n")
	}
	sb.WriteString("</context>\n\n")

	sb.WriteString("<question>\n")
	sb.WriteString(question)
	sb.WriteString("\n</question>")
	return sb.String()
}
