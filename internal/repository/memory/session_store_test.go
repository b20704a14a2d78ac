package memory

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-voicechat-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pair(seq int64, question, answer string, source entity.Provenance) (*entity.ChatTurn, *entity.ChatTurn) {
	chunks := 2
	user := &entity.ChatTurn{
		Sequence: seq,
		Role:     entity.RoleUser,
		Content:  question,
		Metadata: &entity.TurnMetadata{InputType: entity.InputAudio, Transcription: "गांधी ने क्या किया?", SourceLanguage: "hi-IN"},
	}
	assistant := &entity.ChatTurn{
		Sequence: seq,
		Role:     entity.RoleAssistant,
		Content:  answer,
		Metadata: &entity.TurnMetadata{Source: source, ChunksUsed: &chunks},
	}
	return user, assistant
}

func TestAppendTurnPairRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)
	sess, err := store.CreateSession(ctx)
	require.NoError(t, err)

	user, assistant := pair(1, "What did Gandhi lead?", "The Salt March.", entity.ProvenanceVectorDB)
	require.NoError(t, store.AppendTurnPair(ctx, sess.Id, user, assistant))

	history, err := store.GetHistory(ctx, sess.Id)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, user.Role, history[0].Role)
	assert.Equal(t, user.Content, history[0].Content)
	assert.Equal(t, user.Metadata, history[0].Metadata)
	assert.Equal(t, assistant.Role, history[1].Role)
	assert.Equal(t, assistant.Content, history[1].Content)
	assert.Equal(t, assistant.Metadata, history[1].Metadata)
	assert.True(t, history[1].CreatedAt.After(history[0].CreatedAt))
}

func TestAppendTurnPairIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)
	sess, _ := store.CreateSession(ctx)

	user, assistant := pair(1, "q", "a", entity.ProvenanceHistory)
	require.NoError(t, store.AppendTurnPair(ctx, sess.Id, user, assistant))
	require.NoError(t, store.AppendTurnPair(ctx, sess.Id, user, assistant))

	history, _ := store.GetHistory(ctx, sess.Id)
	assert.Len(t, history, 2)
}

func TestAppendRejectsAssistantWithoutProvenance(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)
	sess, _ := store.CreateSession(ctx)

	user := &entity.ChatTurn{Sequence: 1, Role: entity.RoleUser, Content: "q"}
	assistant := &entity.ChatTurn{Sequence: 1, Role: entity.RoleAssistant, Content: "a"}

	assert.ErrorIs(t, store.AppendTurnPair(ctx, sess.Id, user, assistant), entity.ErrMissingProvenance)
	history, _ := store.GetHistory(ctx, sess.Id)
	assert.Empty(t, history)

	assert.ErrorIs(t, store.AppendTurn(ctx, sess.Id, &entity.ChatTurn{Role: "system", Content: "x"}), entity.ErrInvalidRole)
}

func TestAppendTurnAssignsSequences(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)
	sess, _ := store.CreateSession(ctx)

	require.NoError(t, store.AppendTurn(ctx, sess.Id, &entity.ChatTurn{Role: entity.RoleUser, Content: "q1"}))
	require.NoError(t, store.AppendTurn(ctx, sess.Id, &entity.ChatTurn{
		Role: entity.RoleAssistant, Content: "a1", Metadata: &entity.TurnMetadata{Source: entity.ProvenanceVectorDB},
	}))
	require.NoError(t, store.AppendTurn(ctx, sess.Id, &entity.ChatTurn{Role: entity.RoleUser, Content: "q2"}))

	history, _ := store.GetHistory(ctx, sess.Id)
	require.Len(t, history, 3)
	assert.Equal(t, []int64{1, 1, 2}, []int64{history[0].Sequence, history[1].Sequence, history[2].Sequence})

	last, err := store.LastSequence(ctx, sess.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), last)
}

func TestHistoryOrderAndRecentWindow(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)
	sess, _ := store.CreateSession(ctx)

	// Same timestamp on every turn; the store must still keep them ordered.
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	for seq := int64(1); seq <= 5; seq++ {
		u, a := pair(seq, "q", "a", entity.ProvenanceHistory)
		require.NoError(t, store.AppendTurnPair(ctx, sess.Id, u, a))
	}

	history, _ := store.GetHistory(ctx, sess.Id)
	require.Len(t, history, 10)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].CreatedAt.After(history[i-1].CreatedAt), "turn %d not after %d", i, i-1)
		assert.GreaterOrEqual(t, history[i].Sequence, history[i-1].Sequence)
	}

	recent, err := store.RecentTurns(ctx, sess.Id, 4)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, int64(4), recent[0].Sequence)
	assert.Equal(t, int64(5), recent[3].Sequence)
}

func TestReturnedTurnsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)
	sess, _ := store.CreateSession(ctx)

	u, a := pair(1, "q", "a", entity.ProvenanceVectorDB)
	require.NoError(t, store.AppendTurnPair(ctx, sess.Id, u, a))

	u.Content = "mutated by caller"
	history, _ := store.GetHistory(ctx, sess.Id)
	history[1].Metadata.Source = entity.ProvenanceHistory

	again, _ := store.GetHistory(ctx, sess.Id)
	assert.Equal(t, "q", again[0].Content)
	assert.Equal(t, entity.ProvenanceVectorDB, again[1].Metadata.Source)
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	older, _ := store.CreateSession(ctx)
	newer, _ := store.CreateSession(ctx)

	long := strings.Repeat("न", 80)
	u, a := pair(1, "q", long, entity.ProvenanceVectorDB)
	require.NoError(t, store.AppendTurnPair(ctx, older.Id, u, a))

	list, err := store.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, older.Id, list[0].Id)
	assert.Equal(t, []rune(long)[:60], []rune(list[0].LastMessage))
	assert.Equal(t, newer.Id, list[1].Id)
	assert.Empty(t, list[1].LastMessage)
}

func TestUnknownSession(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)
	id := uuid.New()

	ok, err := store.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.GetHistory(ctx, id)
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)

	u, a := pair(1, "q", "a", entity.ProvenanceHistory)
	assert.ErrorIs(t, store.AppendTurnPair(ctx, id, u, a), entity.ErrSessionNotFound)
}

func TestConcurrentAppendsKeepPairsTogether(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)
	sess, _ := store.CreateSession(ctx)

	var wg sync.WaitGroup
	for seq := int64(1); seq <= 20; seq++ {
		wg.Add(1)
		go func(seq int64) {
			defer wg.Done()
			u, a := pair(seq, "q", "a", entity.ProvenanceHistory)
			assert.NoError(t, store.AppendTurnPair(ctx, sess.Id, u, a))
		}(seq)
	}
	wg.Wait()

	history, _ := store.GetHistory(ctx, sess.Id)
	require.Len(t, history, 40)
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, entity.RoleUser, history[i].Role)
		assert.Equal(t, entity.RoleAssistant, history[i+1].Role)
		assert.Equal(t, history[i].Sequence, history[i+1].Sequence)
	}
}

func TestLatePairKeepsSequenceOrder(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)
	sess, _ := store.CreateSession(ctx)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := func(u, a *entity.ChatTurn, sec int) (*entity.ChatTurn, *entity.ChatTurn) {
		u.CreatedAt = base.Add(time.Duration(sec) * time.Second)
		a.CreatedAt = u.CreatedAt.Add(time.Millisecond)
		return u, a
	}

	// sequence 1 was answered first but stored after sequence 2
	u1, a1 := pair(1, "q1", "a1", entity.ProvenanceVectorDB)
	u1, a1 = at(u1, a1, 1)
	u2, a2 := pair(2, "q2", "a2", entity.ProvenanceVectorDB)
	u2, a2 = at(u2, a2, 2)
	require.NoError(t, store.AppendTurnPair(ctx, sess.Id, u2, a2))
	require.NoError(t, store.AppendTurnPair(ctx, sess.Id, u1, a1))

	last, err := store.LastSequence(ctx, sess.Id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), last)

	history, _ := store.GetHistory(ctx, sess.Id)
	require.Len(t, history, 4)
	assert.Equal(t, []string{"q1", "a1", "q2", "a2"}, []string{history[0].Content, history[1].Content, history[2].Content, history[3].Content})
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].CreatedAt.After(history[i-1].CreatedAt), "turn %d not after %d", i, i-1)
	}

	list, _ := store.ListSessions(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "a2", list[0].LastMessage)
}
