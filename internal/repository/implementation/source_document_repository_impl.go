package implementation

import (
	"context"
	"errors"

	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/internal/mapper"
	"ai-voicechat-be/internal/model"
	"ai-voicechat-be/internal/repository/contract"
	"ai-voicechat-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SourceDocumentRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeMapper
}

func NewSourceDocumentRepository(db *gorm.DB) contract.SourceDocumentRepository {
	return &SourceDocumentRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeMapper(),
	}
}

func (r *SourceDocumentRepositoryImpl) Upsert(ctx context.Context, doc *entity.SourceDocument) error {
	m := r.mapper.DocumentToModel(doc)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "title"}},
			DoUpdates: clause.AssignmentColumns([]string{"url", "content_hash", "updated_at"}),
		}).
		Create(m).Error
	if err != nil {
		return err
	}

	// ON CONFLICT does not hand back the existing id on every driver path
	var stored model.SourceDocument
	if err := r.db.WithContext(ctx).Where("title = ?", m.Title).First(&stored).Error; err != nil {
		return err
	}
	*doc = *r.mapper.DocumentToEntity(&stored)
	return nil
}

func (r *SourceDocumentRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SourceDocument, error) {
	var m model.SourceDocument
	query := specification.ApplyAll(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.DocumentToEntity(&m), nil
}

func (r *SourceDocumentRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SourceDocument, error) {
	var models []*model.SourceDocument
	query := specification.ApplyAll(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.SourceDocument, len(models))
	for i, m := range models {
		entities[i] = r.mapper.DocumentToEntity(m)
	}
	return entities, nil
}
