package contract

import (
	"context"

	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ArticleChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.ArticleChunk) error
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilar returns at most limit chunks whose cosine similarity to
	// the query is >= threshold, most similar first.
	SearchSimilar(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*entity.RetrievedPassage, error)
}
