package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionResponse struct {
	SessionId uuid.UUID `json:"session_id"`
}

type SessionSummaryResponse struct {
	Id          uuid.UUID  `json:"id"`
	LastMessage string     `json:"last_message"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type ListSessionsResponse struct {
	Sessions []*SessionSummaryResponse `json:"sessions"`
}

type TurnMetadataResponse struct {
	Source         string `json:"source,omitempty"`
	Transcription  string `json:"transcription,omitempty"`
	SourceLanguage string `json:"source_language,omitempty"`
	Translation    string `json:"translation,omitempty"`
	InputType      string `json:"input_type,omitempty"`
	ChunksUsed     *int   `json:"chunks_used,omitempty"`
}

type ChatTurnResponse struct {
	Sequence  int64                 `json:"sequence"`
	Role      string                `json:"role"`
	Content   string                `json:"content"`
	Metadata  *TurnMetadataResponse `json:"metadata,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

type ChatHistoryResponse struct {
	SessionId uuid.UUID           `json:"session_id"`
	Messages  []*ChatTurnResponse `json:"messages"`
}

type SendChatRequest struct {
	SessionId uuid.UUID `json:"session_id" validate:"required"`
	Message   string    `json:"message" validate:"required,max=4000"`
	// Language is a BCP-47 code such as "hi-IN". Empty means detect.
	Language string `json:"language" validate:"omitempty,max=16"`
}

// SendAudioRequest is bound from multipart form values; the audio itself
// is the "file" part.
type SendAudioRequest struct {
	SessionId uuid.UUID `form:"session_id" validate:"required"`
	Language  string    `form:"language" validate:"omitempty,max=16"`
}

type RetryTurnRequest struct {
	RetryKey string `json:"retry_key" validate:"required"`
}

// ChatResponse carries Warning and RetryKey only when the answer could not
// be stored.
type ChatResponse struct {
	Answer         string `json:"answer"`
	Source         string `json:"source"`
	Transcription  string `json:"transcription,omitempty"`
	Translation    string `json:"translation,omitempty"`
	SourceLanguage string `json:"source_language,omitempty"`
	ChunksUsed     int    `json:"chunks_used"`
	Sequence       int64  `json:"sequence"`
	Warning        string `json:"warning,omitempty"`
	RetryKey       string `json:"retry_key,omitempty"`
}
