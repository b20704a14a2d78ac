package mapper

import (
	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type KnowledgeMapper struct{}

func NewKnowledgeMapper() *KnowledgeMapper {
	return &KnowledgeMapper{}
}

func (m *KnowledgeMapper) DocumentToEntity(d *model.SourceDocument) *entity.SourceDocument {
	if d == nil {
		return nil
	}
	return &entity.SourceDocument{
		Id:          d.Id,
		Title:       d.Title,
		Url:         d.Url,
		ContentHash: d.ContentHash,
		CreatedAt:   d.CreatedAt,
	}
}

func (m *KnowledgeMapper) DocumentToModel(d *entity.SourceDocument) *model.SourceDocument {
	if d == nil {
		return nil
	}
	return &model.SourceDocument{
		Id:          d.Id,
		Title:       d.Title,
		Url:         d.Url,
		ContentHash: d.ContentHash,
		CreatedAt:   d.CreatedAt,
	}
}

func (m *KnowledgeMapper) ChunkToModel(c *entity.ArticleChunk) *model.ArticleChunk {
	if c == nil {
		return nil
	}
	return &model.ArticleChunk{
		Id:         c.Id,
		DocumentId: c.DocumentId,
		ChunkIndex: c.ChunkIndex,
		Content:    c.Content,
		Embedding:  pgvector.NewVector(c.Embedding),
		CreatedAt:  c.CreatedAt,
	}
}

func (m *KnowledgeMapper) ChunksToModels(chunks []*entity.ArticleChunk) []*model.ArticleChunk {
	models := make([]*model.ArticleChunk, len(chunks))
	for i, c := range chunks {
		models[i] = m.ChunkToModel(c)
	}
	return models
}
