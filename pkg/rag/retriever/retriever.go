// Package retriever ranks knowledge-base passages against a query embedding.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"ai-voicechat-be/internal/entity"
)

var ErrEmptyEmbedding = errors.New("query embedding is empty")

// ChunkSearcher runs the nearest-neighbour query against stored chunks.
type ChunkSearcher interface {
	SearchSimilar(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*entity.RetrievedPassage, error)
}

// Retriever wraps vector search with the top-k and similarity rules.
type Retriever struct {
	chunks        ChunkSearcher
	defaultK      int
	maxK          int
	minSimilarity float64
}

// New creates a Retriever. A non-positive k means defaultK and k is capped
// at maxK; passages scoring below minSimilarity are dropped.
func New(chunks ChunkSearcher, defaultK, maxK int, minSimilarity float64) *Retriever {
	if defaultK <= 0 {
		defaultK = 3
	}
	if maxK < defaultK {
		maxK = defaultK
	}
	return &Retriever{
		chunks:        chunks,
		defaultK:      defaultK,
		maxK:          maxK,
		minSimilarity: minSimilarity,
	}
}

// Search returns at most k passages scoring at least the configured minimum
// similarity, best first. Equal scores keep document order (lower chunk
// index first). An empty result is not an error.
func (r *Retriever) Search(ctx context.Context, embedding []float32, k int) ([]*entity.RetrievedPassage, error) {
	if len(embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	if k <= 0 {
		k = r.defaultK
	}
	if k > r.maxK {
		k = r.maxK
	}

	found, err := r.chunks.SearchSimilar(ctx, embedding, k, r.minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	passages := make([]*entity.RetrievedPassage, 0, len(found))
	for _, p := range found {
		if p == nil || p.Score < r.minSimilarity {
			continue
		}
		passages = append(passages, p)
	}
	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		return passages[i].ChunkIndex < passages[j].ChunkIndex
	})
	if len(passages) > k {
		passages = passages[:k]
	}
	return passages, nil
}
