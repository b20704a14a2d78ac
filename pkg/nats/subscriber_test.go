package nats

import (
	"encoding/json"
	"testing"
	"time"

	"ai-voicechat-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_RoundTripsEnvelope(t *testing.T) {
	ev := events.TurnCompleted("s-1", 3, "vectordb", 2, 1500*time.Millisecond)
	raw, err := json.Marshal(envelope{Type: ev.EventType(), OccurredAt: ev.Timestamp(), Data: ev.Payload()})
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, events.TypeTurnCompleted, got.EventType())
	assert.Equal(t, "s-1", got.Payload()["session_id"])
	assert.Equal(t, "vectordb", got.Payload()["source"])
	assert.EqualValues(t, 1500, got.Payload()["elapsed_ms"])
	assert.True(t, ev.Timestamp().Equal(got.Timestamp()))
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte("{"))
	assert.Error(t, err)
}
