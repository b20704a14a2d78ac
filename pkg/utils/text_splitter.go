package utils

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order, coarsest first. The empty separator
// splits into single runes and always succeeds.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// RecursiveSplitter cuts text into chunks of at most ChunkSize runes. Adjacent
// chunks produced from the same run of pieces share up to Overlap runes, so a
// phrase shorter than the overlap that crosses a cut appears whole in the
// following chunk.
type RecursiveSplitter struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

// NewRecursiveSplitter creates a splitter with DefaultSeparators.
func NewRecursiveSplitter(chunkSize, overlap int) *RecursiveSplitter {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &RecursiveSplitter{
		ChunkSize:  chunkSize,
		Overlap:    overlap,
		Separators: DefaultSeparators,
	}
}

// SplitText splits with the default separators.
func SplitText(text string, chunkSize int, overlap int) []string {
	return NewRecursiveSplitter(chunkSize, overlap).Split(text)
}

// Split returns trimmed, non-empty chunks of at most ChunkSize runes.
func (s *RecursiveSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	for _, c := range s.split(text, s.Separators) {
		if c = strings.TrimSpace(c); c != "" {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

func (s *RecursiveSplitter) split(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, candidate := range separators {
		if candidate == "" {
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepingSeparator(text, sep) {
		if utf8.RuneCountInString(piece) <= s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		final = append(final, s.split(piece, rest)...)
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// merge packs pieces into windows of at most ChunkSize runes, carrying the
// tail of each window (at most Overlap runes) into the next.
func (s *RecursiveSplitter) merge(pieces []string) []string {
	var (
		docs    []string
		current []string
		total   int
	)

	for _, piece := range pieces {
		l := utf8.RuneCountInString(piece)
		if total+l > s.ChunkSize && len(current) > 0 {
			docs = append(docs, strings.Join(current, ""))
			for len(current) > 0 && (total > s.Overlap || total+l > s.ChunkSize) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += l
	}

	if len(current) > 0 {
		docs = append(docs, strings.Join(current, ""))
	}
	return docs
}

// splitKeepingSeparator attaches each separator to the start of the piece
// after it so joining the pieces restores the input.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}
