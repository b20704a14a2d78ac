package retriever

import (
	"context"
	"errors"
	"testing"

	"ai-voicechat-be/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	passages  []*entity.RetrievedPassage
	err       error
	limit     int
	threshold float64
}

func (s *fakeSearcher) SearchSimilar(_ context.Context, _ []float32, limit int, threshold float64) ([]*entity.RetrievedPassage, error) {
	s.limit = limit
	s.threshold = threshold
	return s.passages, s.err
}

func TestSearch(t *testing.T) {
	search := &fakeSearcher{passages: []*entity.RetrievedPassage{
		{Text: "b", Score: 0.8, ChunkIndex: 7},
		{Text: "a2", Score: 0.9, ChunkIndex: 4},
		{Text: "a1", Score: 0.9, ChunkIndex: 2},
		{Text: "low", Score: 0.1, ChunkIndex: 0},
	}}

	r := New(search, 3, 5, 0.3)
	got, err := r.Search(context.Background(), []float32{1, 0}, 0)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"a1", "a2", "b"}, []string{got[0].Text, got[1].Text, got[2].Text})
	assert.Equal(t, 3, search.limit)
	assert.Equal(t, 0.3, search.threshold)
}

func TestSearchClampsK(t *testing.T) {
	search := &fakeSearcher{}
	r := New(search, 3, 5, 0.3)

	_, err := r.Search(context.Background(), []float32{1}, 50)
	require.NoError(t, err)
	assert.Equal(t, 5, search.limit)
}

func TestSearchEmptyResultIsNotAnError(t *testing.T) {
	r := New(&fakeSearcher{}, 3, 3, 0.3)
	got, err := r.Search(context.Background(), []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchErrors(t *testing.T) {
	r := New(&fakeSearcher{err: errors.New("connection refused")}, 3, 3, 0.3)

	_, err := r.Search(context.Background(), nil, 3)
	assert.ErrorIs(t, err, ErrEmptyEmbedding)

	_, err = r.Search(context.Background(), []float32{1}, 3)
	assert.ErrorContains(t, err, "connection refused")
}
