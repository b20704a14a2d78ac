package entity

import (
	"time"

	"github.com/google/uuid"
)

type SourceDocument struct {
	Id          uuid.UUID
	Title       string
	Url         string
	ContentHash string
	CreatedAt   time.Time
}

type ArticleChunk struct {
	Id         uuid.UUID
	DocumentId uuid.UUID
	ChunkIndex int
	Content    string
	Embedding  []float32
	CreatedAt  time.Time
}

// RetrievedPassage lives for one turn only and is never persisted.
type RetrievedPassage struct {
	Text       string
	Score      float64
	DocumentId uuid.UUID
	ChunkIndex int
}
