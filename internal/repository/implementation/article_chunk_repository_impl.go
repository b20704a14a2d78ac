package implementation

import (
	"context"

	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/internal/mapper"
	"ai-voicechat-be/internal/model"
	"ai-voicechat-be/internal/repository/contract"
	"ai-voicechat-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type ArticleChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeMapper
}

func NewArticleChunkRepository(db *gorm.DB) contract.ArticleChunkRepository {
	return &ArticleChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeMapper(),
	}
}

func (r *ArticleChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.ArticleChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := r.mapper.ChunksToModels(chunks)
	if err := r.db.WithContext(ctx).CreateInBatches(models, 100).Error; err != nil {
		return err
	}
	for i, m := range models {
		chunks[i].Id = m.Id
		chunks[i].CreatedAt = m.CreatedAt
	}
	return nil
}

func (r *ArticleChunkRepositoryImpl) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentId).Delete(&model.ArticleChunk{}).Error
}

func (r *ArticleChunkRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := specification.ApplyAll(r.db.WithContext(ctx).Model(&model.ArticleChunk{}), specs...)
	err := query.Count(&count).Error
	return count, err
}

func (r *ArticleChunkRepositoryImpl) SearchSimilar(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*entity.RetrievedPassage, error) {
	if limit <= 0 {
		limit = 3
	}

	// pgvector <=> is cosine distance, so similarity = 1 - distance
	type result struct {
		DocumentId uuid.UUID
		ChunkIndex int
		Content    string
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	err := r.db.WithContext(ctx).
		Table("article_chunks").
		Select("document_id, chunk_index, content, 1 - (embedding <=> ?) as similarity", queryVector).
		Where("1 - (embedding <=> ?) >= ?", queryVector, threshold).
		Order("similarity DESC").
		Order("chunk_index ASC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	passages := make([]*entity.RetrievedPassage, len(results))
	for i, res := range results {
		passages[i] = &entity.RetrievedPassage{
			Text:       res.Content,
			Score:      res.Similarity,
			DocumentId: res.DocumentId,
			ChunkIndex: res.ChunkIndex,
		}
	}
	return passages, nil
}
