package pipeline

import (
	"context"
	"errors"
	"fmt"

	"ai-voicechat-be/internal/entity"

	"github.com/google/uuid"
)

// Failure kinds. Every error from HandleTurn that is not an input or lookup
// error matches exactly one of these under errors.Is.
var (
	ErrTranscription = errors.New("transcription failed")
	ErrTranslation   = errors.New("translation failed")
	ErrRetrieval     = errors.New("retrieval failed")
	ErrGeneration    = errors.New("generation failed")
	ErrPersistence   = errors.New("persistence failed")
)

var (
	ErrInvalidInput    = errors.New("invalid turn input")
	ErrSessionNotFound = entity.ErrSessionNotFound
	ErrUnknownRetryKey = errors.New("no pending turn for retry key")
)

// StageError is a turn that ended in ERRORED. Nothing was written to the
// session.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v during %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Timeout reports whether the stage ran out of time rather than failing outright.
func (e *StageError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// PersistenceError means the answer was computed but the turn pair could
// not be stored. Response is safe to show; RetryKey re-appends it through
// Orchestrator.RetryPersist without recomputation.
type PersistenceError struct {
	Response *Response
	RetryKey string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%v (retry key %s): %v", ErrPersistence, e.RetryKey, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// RetryKey is "<session id>:<sequence>".
func RetryKey(sessionID uuid.UUID, sequence int64) string {
	return fmt.Sprintf("%s:%d", sessionID, sequence)
}
