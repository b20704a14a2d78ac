package pipeline

import (
	"context"

	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/pkg/asr"
	"ai-voicechat-be/pkg/embedding"
	"ai-voicechat-be/pkg/events"
	"ai-voicechat-be/pkg/rag/prompt"

	"github.com/google/uuid"
)

// Collaborators return plain wrapped errors. The orchestrator classifies
// them by the stage they occur in.

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, languageHint string) (*asr.Transcript, error)
}

// Translator translates text into the target language.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
	// Ceiling is the longest input, in characters, one call accepts.
	Ceiling() int
}

// Embedder embeds the question for vector search.
type Embedder interface {
	Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error)
}

// IndexGuard makes sure the knowledge index exists before a search.
type IndexGuard interface {
	EnsureIndex(ctx context.Context) error
}

// Retriever returns passages ordered by descending score. An empty
// result is not an error.
type Retriever interface {
	Search(ctx context.Context, embedding []float32, k int) ([]*entity.RetrievedPassage, error)
}

// Generator answers an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, p *prompt.Prompt) (string, error)
}

// SessionStore is the part of session storage a turn needs.
type SessionStore interface {
	Exists(ctx context.Context, sessionID uuid.UUID) (bool, error)
	// RecentTurns returns the last limit turns in history order.
	RecentTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]*entity.ChatTurn, error)
	LastSequence(ctx context.Context, sessionID uuid.UUID) (int64, error)
	// AppendTurnPair stores both turns or neither. Appending a pair whose
	// sequence is already stored is a no-op.
	AppendTurnPair(ctx context.Context, sessionID uuid.UUID, user, assistant *entity.ChatTurn) error
}

type EventPublisher = events.Publisher
