package implementation

import (
	"context"
	"errors"

	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/internal/mapper"
	"ai-voicechat-be/internal/model"
	"ai-voicechat-be/internal/repository/contract"
	"ai-voicechat-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatMessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatMessageRepository(db *gorm.DB) contract.ChatMessageRepository {
	return &ChatMessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatMessageRepositoryImpl) CreateBulk(ctx context.Context, turns []*entity.ChatTurn) error {
	if len(turns) == 0 {
		return nil
	}
	models := make([]*model.ChatMessage, len(turns))
	for i, t := range turns {
		m, err := r.mapper.ChatTurnToModel(t)
		if err != nil {
			return err
		}
		models[i] = m
	}

	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}

	for i, m := range models {
		turns[i].Id = m.Id
	}
	return nil
}

func (r *ChatMessageRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatTurn, error) {
	var m model.ChatMessage
	query := specification.ApplyAll(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ChatTurnToEntity(&m)
}

func (r *ChatMessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatTurn, error) {
	var models []*model.ChatMessage
	query := specification.ApplyAll(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ChatTurnsToEntities(models)
}

func (r *ChatMessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := specification.ApplyAll(r.db.WithContext(ctx).Model(&model.ChatMessage{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ChatMessageRepositoryImpl) MaxSequence(ctx context.Context, sessionId uuid.UUID) (int64, error) {
	var max int64
	err := r.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Where("chat_session_id = ?", sessionId).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&max).Error
	return max, err
}

func (r *ChatMessageRepositoryImpl) LastMessages(ctx context.Context, sessionIds []uuid.UUID) (map[uuid.UUID]*entity.ChatTurn, error) {
	out := make(map[uuid.UUID]*entity.ChatTurn, len(sessionIds))
	if len(sessionIds) == 0 {
		return out, nil
	}

	var models []*model.ChatMessage
	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (chat_session_id) *
			FROM chat_messages
			WHERE chat_session_id IN ?
			ORDER BY chat_session_id, sequence DESC, created_at DESC`, sessionIds).
		Scan(&models).Error
	if err != nil {
		return nil, err
	}

	for _, m := range models {
		t, err := r.mapper.ChatTurnToEntity(m)
		if err != nil {
			return nil, err
		}
		out[t.ChatSessionId] = t
	}
	return out, nil
}
