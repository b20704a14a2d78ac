package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionLockCoversWorstCaseTurn(t *testing.T) {
	t.Setenv("SESSION_LOCK_TTL", "")
	t.Setenv("ASR_TIMEOUT", "10s")
	t.Setenv("TRANSLATION_TIMEOUT", "5s")
	t.Setenv("EMBEDDING_TIMEOUT", "5s")
	t.Setenv("RETRIEVAL_TIMEOUT", "2s")
	t.Setenv("LLM_TIMEOUT", "20s")
	t.Setenv("PERSISTENCE_TIMEOUT", "3s")
	t.Setenv("BOOTSTRAP_TIMEOUT", "1m")

	cfg := Load()

	// asr + 2 translations + routing + bootstrap + embed + search + generate + persist
	want := 10*time.Second + 10*time.Second + 20*time.Second + time.Minute + 5*time.Second + 2*time.Second + 20*time.Second + 3*time.Second
	assert.Equal(t, want, cfg.Timeouts.WorstCaseTurn())
	assert.Equal(t, want, cfg.Timeouts.SessionLock)
}

func TestSessionLockOverride(t *testing.T) {
	t.Setenv("SESSION_LOCK_TTL", "90")

	cfg := Load()
	assert.Equal(t, 90*time.Second, cfg.Timeouts.SessionLock)
}
