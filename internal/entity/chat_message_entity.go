package entity

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Provenance records where an assistant answer was grounded.
type Provenance string

const (
	ProvenanceHistory  Provenance = "history"
	ProvenanceVectorDB Provenance = "vectordb"
)

func (p Provenance) Valid() bool {
	return p == ProvenanceHistory || p == ProvenanceVectorDB
}

type InputType string

const (
	InputText  InputType = "text"
	InputAudio InputType = "audio"
)

// TurnMetadata is stored as JSON next to the turn content. Empty fields are
// omitted so the persisted shape stays {source?, transcription?, ...}.
type TurnMetadata struct {
	Source         Provenance `json:"source,omitempty"`
	Transcription  string     `json:"transcription,omitempty"`
	SourceLanguage string     `json:"source_language,omitempty"`
	Translation    string     `json:"translation,omitempty"`
	InputType      InputType  `json:"input_type,omitempty"`
	ChunksUsed     *int       `json:"chunks_used,omitempty"`
}

// ChatTurn is one immutable message of a session. A user turn and the
// assistant reply to it share the same Sequence.
type ChatTurn struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	Sequence      int64
	Role          Role
	Content       string
	Metadata      *TurnMetadata
	CreatedAt     time.Time
}

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidRole       = errors.New("turn role must be user or assistant")
	ErrMissingProvenance = errors.New("assistant turn must carry a provenance tag")
)

func (t *ChatTurn) Validate() error {
	if !t.Role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, t.Role)
	}
	if t.Role == RoleAssistant && (t.Metadata == nil || !t.Metadata.Source.Valid()) {
		return ErrMissingProvenance
	}
	return nil
}

// Preview cuts content to at most n runes for list views.
func Preview(content string, n int) string {
	if utf8.RuneCountInString(content) <= n {
		return content
	}
	runes := []rune(content)
	return string(runes[:n])
}

// Clone returns a deep copy so stored turns cannot be mutated by callers.
func (t *ChatTurn) Clone() *ChatTurn {
	if t == nil {
		return nil
	}
	out := *t
	if t.Metadata != nil {
		meta := *t.Metadata
		if t.Metadata.ChunksUsed != nil {
			n := *t.Metadata.ChunksUsed
			meta.ChunksUsed = &n
		}
		out.Metadata = &meta
	}
	return &out
}
