package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChatSession struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage rows are append-only. The unique index on
// (session, sequence, role) makes a replayed append detectable.
type ChatMessage struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_chat_messages_turn,priority:1"`
	Sequence      int64          `gorm:"not null;uniqueIndex:idx_chat_messages_turn,priority:2"`
	Role          string         `gorm:"type:varchar(16);not null;uniqueIndex:idx_chat_messages_turn,priority:3"`
	Content       string         `gorm:"type:text;not null"`
	Metadata      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null;index"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
