package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatSession struct {
	Id        uuid.UUID
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// ChatSessionSummary is the list view of a session.
type ChatSessionSummary struct {
	Id          uuid.UUID
	LastMessage string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}
