package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// EmbeddingDimensions matches all-MiniLM-L6-v2. Jina is asked for the same size.
const EmbeddingDimensions = 384

type SourceDocument struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Title       string    `gorm:"type:text;not null;uniqueIndex"`
	Url         string    `gorm:"type:text"`
	ContentHash string    `gorm:"type:varchar(64);not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (SourceDocument) TableName() string {
	return "source_documents"
}

type ArticleChunk struct {
	Id         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentId uuid.UUID       `gorm:"type:uuid;not null;index"`
	ChunkIndex int             `gorm:"not null;default:0"`
	Content    string          `gorm:"type:text;not null"`
	Embedding  pgvector.Vector `gorm:"type:vector(384)"`
	CreatedAt  time.Time       `gorm:"autoCreateTime"`
}

func (ArticleChunk) TableName() string {
	return "article_chunks"
}
