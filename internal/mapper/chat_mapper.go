package mapper

import (
	"encoding/json"
	"fmt"
	"time"

	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/internal/model"

	"gorm.io/datatypes"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) ChatSessionToEntity(s *model.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.ChatSession{
		Id:        s.Id,
		CreatedAt: s.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m *ChatMapper) ChatSessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.ChatSession{
		Id:        s.Id,
		CreatedAt: s.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

// Turn Mappers

func (m *ChatMapper) ChatTurnToEntity(msg *model.ChatMessage) (*entity.ChatTurn, error) {
	if msg == nil {
		return nil, nil
	}

	var meta *entity.TurnMetadata
	if len(msg.Metadata) > 0 && string(msg.Metadata) != "null" {
		meta = &entity.TurnMetadata{}
		if err := json.Unmarshal(msg.Metadata, meta); err != nil {
			return nil, fmt.Errorf("decode metadata of message %s: %w", msg.Id, err)
		}
	}

	return &entity.ChatTurn{
		Id:            msg.Id,
		ChatSessionId: msg.ChatSessionId,
		Sequence:      msg.Sequence,
		Role:          entity.Role(msg.Role),
		Content:       msg.Content,
		Metadata:      meta,
		CreatedAt:     msg.CreatedAt,
	}, nil
}

func (m *ChatMapper) ChatTurnToModel(t *entity.ChatTurn) (*model.ChatMessage, error) {
	if t == nil {
		return nil, nil
	}

	var meta datatypes.JSON
	if t.Metadata != nil {
		raw, err := json.Marshal(t.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode turn metadata: %w", err)
		}
		meta = datatypes.JSON(raw)
	}

	return &model.ChatMessage{
		Id:            t.Id,
		ChatSessionId: t.ChatSessionId,
		Sequence:      t.Sequence,
		Role:          string(t.Role),
		Content:       t.Content,
		Metadata:      meta,
		CreatedAt:     t.CreatedAt,
	}, nil
}

func (m *ChatMapper) ChatTurnsToEntities(msgs []*model.ChatMessage) ([]*entity.ChatTurn, error) {
	turns := make([]*entity.ChatTurn, 0, len(msgs))
	for _, msg := range msgs {
		t, err := m.ChatTurnToEntity(msg)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, nil
}
