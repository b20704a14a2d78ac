package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByChatSessionID struct {
	ChatSessionID uuid.UUID
}

func (s ByChatSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id = ?", s.ChatSessionID)
}

type BySequence struct {
	Sequence int64
}

func (s BySequence) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("sequence = ?", s.Sequence)
}

// BeforeSequence keeps turns of earlier exchanges.
type BeforeSequence struct {
	Sequence int64
}

func (s BeforeSequence) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("sequence < ?", s.Sequence)
}

// TurnOrder is the canonical history order: sequence, then user before assistant.
type TurnOrder struct {
	Desc bool
}

func (s TurnOrder) Apply(db *gorm.DB) *gorm.DB {
	if s.Desc {
		return db.Order("sequence DESC").Order("created_at DESC")
	}
	return db.Order("sequence ASC").Order("created_at ASC")
}

type ByDocumentID struct {
	DocumentID uuid.UUID
}

func (s ByDocumentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("document_id = ?", s.DocumentID)
}

type ByTitle struct {
	Title string
}

func (s ByTitle) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("title = ?", s.Title)
}
