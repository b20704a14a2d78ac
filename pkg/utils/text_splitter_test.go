package utils

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentences(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Sentence number %03d is here", i)
	}
	return out
}

func TestSplitText_Short(t *testing.T) {
	assert.Equal(t, []string{"Gandhi led the Salt March."}, SplitText("  Gandhi led the Salt March. ", 500, 100))
	assert.Nil(t, SplitText("   \n\n ", 500, 100))
}

func TestSplitText_ChunkSizeBound(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
	}{
		{name: "sentences", text: strings.Join(sentences(200), ". "), size: 500},
		{name: "paragraphs", text: strings.Join(sentences(60), ".\n\n"), size: 120},
		{name: "no separators", text: strings.Repeat("x", 1234), size: 100},
		{name: "devanagari", text: strings.Repeat("महात्मा गांधी ने नमक सत्याग्रह का नेतृत्व किया। ", 40), size: 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := SplitText(tt.text, tt.size, tt.size/5)
			require.NotEmpty(t, chunks)
			for _, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), tt.size)
				assert.NotEmpty(t, c)
			}
		})
	}
}

func TestSplitText_BoundaryPhraseSurvives(t *testing.T) {
	parts := sentences(120)
	chunks := SplitText(strings.Join(parts, ". "), 500, 100)
	require.Greater(t, len(chunks), 1)

	// every pair of neighbouring sentences must appear together somewhere
	for i := 0; i+1 < len(parts); i++ {
		phrase := parts[i] + ". " + parts[i+1]
		found := false
		for _, c := range chunks {
			if strings.Contains(c, phrase) {
				found = true
				break
			}
		}
		assert.True(t, found, "phrase %q lost at a chunk boundary", phrase)
	}
}

func TestSplitText_ConsecutiveChunksOverlap(t *testing.T) {
	chunks := SplitText(strings.Join(sentences(80), ". "), 500, 100)
	require.Greater(t, len(chunks), 2)

	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1][len(chunks[i-1])-20:]
		assert.Contains(t, chunks[i], prevTail)
	}
}

func TestNewRecursiveSplitter_Defaults(t *testing.T) {
	s := NewRecursiveSplitter(0, -1)
	assert.Equal(t, 500, s.ChunkSize)
	assert.Equal(t, 100, s.Overlap)

	s = NewRecursiveSplitter(50, 80)
	assert.Equal(t, 10, s.Overlap)
}
