package router

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"ai-voicechat-be/internal/entity"
)

var referenceWords = toSet(
	"it", "its", "that", "this", "those", "these", "he", "him", "his", "she", "her",
	"they", "them", "their", "there", "then", "previous", "earlier", "above",
	"same", "former", "latter", "again",
)

var followUpPhrases = []string{
	"what about", "how about", "tell me more", "you said", "you mentioned",
	"explain that", "what else", "and then", "elaborate",
}

var stopWords = toSet(
	"what", "who", "whom", "when", "where", "why", "how", "which", "is", "was",
	"were", "are", "be", "been", "being", "am", "did", "do", "does", "done", "has",
	"have", "had", "the", "a", "an", "of", "in", "on", "at", "to", "for", "with",
	"by", "about", "and", "or", "but", "from", "as", "can", "could", "would",
	"should", "will", "shall", "may", "might", "tell", "me", "please", "you",
	"your", "i", "my", "we", "our", "us", "explain", "describe", "so", "any",
	"some", "more", "else", "also", "just", "really", "very", "much", "many",
	"say", "said", "mentioned", "elaborate", "further", "details", "detail",
)

func toSet(words ...string) map[string]bool {
	s := make(map[string]bool, len(words))
	for _, w := range words {
		s[w] = true
	}
	return s
}

// Words lowercases text and splits it on anything that is not a letter,
// a digit or a combining mark (Devanagari vowel signs are marks).
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
}

// Heuristic routes to history when the question points back at the
// conversation (a pronoun or follow-up phrase) and everything else it
// mentions was already discussed in the last Window turns:
//
//   - empty history: retrieval
//   - no back-reference: retrieval
//   - back-reference and no content words: history ("What about that?")
//   - otherwise history iff the share of content words seen in the
//     window is at least Threshold
type Heuristic struct {
	Window    int
	Threshold float64
}

// NewHeuristic creates a Heuristic router over the last window turns.
func NewHeuristic(window int, threshold float64) *Heuristic {
	if window <= 0 {
		window = 6
	}
	if threshold <= 0 || threshold > 1 {
		threshold = 0.5
	}
	return &Heuristic{Window: window, Threshold: threshold}
}

// Decide implements Router.
func (h *Heuristic) Decide(_ context.Context, question string, history []*entity.ChatTurn) (Decision, error) {
	recent := window(history, h.Window)
	if len(recent) == 0 {
		return Decision{Route: RouteRetrieval, Reason: "empty history"}, nil
	}

	words := Words(question)
	normalized := " " + strings.Join(words, " ") + " "

	backRef := false
	for _, phrase := range followUpPhrases {
		if strings.Contains(normalized, " "+phrase+" ") {
			backRef = true
			break
		}
	}

	var content []string
	seen := make(map[string]bool)
	for _, w := range words {
		if referenceWords[w] {
			backRef = true
			continue
		}
		if stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		content = append(content, w)
	}

	if !backRef {
		return Decision{Route: RouteRetrieval, Reason: "no reference to the conversation"}, nil
	}
	if len(content) == 0 {
		return Decision{Route: RouteHistory, Reason: "pure follow-up", Overlap: 1}, nil
	}

	vocab := make(map[string]bool)
	for _, t := range recent {
		for _, w := range Words(t.Content) {
			vocab[w] = true
		}
	}

	hits := 0
	for _, w := range content {
		if vocab[w] {
			hits++
		}
	}
	overlap := float64(hits) / float64(len(content))

	if overlap >= h.Threshold {
		return Decision{Route: RouteHistory, Reason: fmt.Sprintf("follow-up with %d/%d known words", hits, len(content)), Overlap: overlap}, nil
	}
	return Decision{Route: RouteRetrieval, Reason: fmt.Sprintf("follow-up introduces new words (%d/%d known)", hits, len(content)), Overlap: overlap}, nil
}
