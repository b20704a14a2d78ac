package prompt

import (
	"fmt"
	"unicode/utf8"

	"ai-voicechat-be/pkg/utils"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer measures and cuts text in model tokens.
type Tokenizer interface {
	Count(text string) int
	// Truncate returns a prefix of text holding at most maxTokens tokens.
	Truncate(text string, maxTokens int) string
}

// HeuristicTokenizer assumes 3.5 runes per token, which over-counts English
// BPE slightly. Used when no encoding can be loaded.
type HeuristicTokenizer struct{}

func (HeuristicTokenizer) Count(text string) int {
	n := utf8.RuneCountInString(text)
	return (n*2 + 6) / 7
}

func (h HeuristicTokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if h.Count(text) <= maxTokens {
		return text
	}
	cut := utils.TruncateAtBoundary(text, maxTokens*7/2)
	for cut != "" && h.Count(cut) > maxTokens {
		cut = utils.TruncateAtBoundary(cut, utf8.RuneCountInString(cut)-1)
	}
	return cut
}

// TiktokenTokenizer counts with a BPE encoding from tiktoken-go.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads a BPE encoding such as "cl100k_base". The
// first load downloads the ranks file unless it is cached.
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func (t *TiktokenTokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	cut := t.enc.Decode(tokens[:maxTokens])
	// a multi-byte rune split across tokens decodes to U+FFFD, drop it
	for cut != "" {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r != utf8.RuneError || size > 1 {
			break
		}
		cut = cut[:len(cut)-size]
	}
	return cut
}
