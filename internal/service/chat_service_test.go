package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ai-voicechat-be/internal/constant"
	"ai-voicechat-be/internal/dto"
	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/internal/pkg/logger"
	"ai-voicechat-be/internal/repository/memory"
	"ai-voicechat-be/pkg/rag/pipeline"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTurns struct {
	lastInput pipeline.TurnInput
	resp      *pipeline.Response
	err       error
	retried   string
	pending   int
}

func (f *fakeTurns) HandleTurn(ctx context.Context, sessionID uuid.UUID, in pipeline.TurnInput) (*pipeline.Response, error) {
	f.lastInput = in
	return f.resp, f.err
}

func (f *fakeTurns) RetryPersist(ctx context.Context, retryKey string) (*pipeline.Response, error) {
	f.retried = retryKey
	return f.resp, f.err
}

func (f *fakeTurns) PendingCount() int {
	return f.pending
}

type readiness bool

func (r readiness) Ready() bool {
	return bool(r)
}

func newChatService(turns *fakeTurns, ready bool) (IChatService, *memory.SessionStore) {
	store := memory.NewSessionStore(0)
	return NewChatService(store, turns, readiness(ready), logger.NewNopLogger()), store
}

func TestChatService_SendChat(t *testing.T) {
	sessionId := uuid.New()
	answered := &pipeline.Response{Answer: "He was born in 1869.", Source: entity.ProvenanceVectorDB, ChunksUsed: 2, Sequence: 1}

	tests := []struct {
		name        string
		err         error
		wantErr     error
		wantWarning bool
	}{
		{name: "answered", wantWarning: false},
		{
			name:        "stored later",
			err:         &pipeline.PersistenceError{Response: answered, RetryKey: pipeline.RetryKey(sessionId, 1), Err: errors.New("db down")},
			wantWarning: true,
		},
		{
			name:    "stage failure passes through",
			err:     &pipeline.StageError{Stage: pipeline.StageGenerating, Kind: pipeline.ErrGeneration, Err: errors.New("boom")},
			wantErr: pipeline.ErrGeneration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turns := &fakeTurns{resp: answered, err: tt.err}
			if tt.err != nil {
				turns.resp = nil
			}
			svc, _ := newChatService(turns, true)

			res, err := svc.SendChat(context.Background(), &dto.SendChatRequest{SessionId: sessionId, Message: "When was Gandhi born?"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, answered.Answer, res.Answer)
			assert.Equal(t, "vectordb", res.Source)
			assert.Equal(t, 2, res.ChunksUsed)
			assert.Equal(t, "When was Gandhi born?", turns.lastInput.Text)
			if tt.wantWarning {
				assert.Equal(t, constant.PersistenceWarning, res.Warning)
				assert.Equal(t, fmt.Sprintf("%s:1", sessionId), res.RetryKey)
			} else {
				assert.Empty(t, res.Warning)
				assert.Empty(t, res.RetryKey)
			}
		})
	}
}

func TestChatService_SendAudio_DefaultsLanguage(t *testing.T) {
	turns := &fakeTurns{resp: &pipeline.Response{Answer: "ok", Source: entity.ProvenanceHistory}}
	svc, _ := newChatService(turns, true)

	_, err := svc.SendAudio(context.Background(), &dto.SendAudioRequest{SessionId: uuid.New()}, []byte("RIFF"), "q.wav")
	require.NoError(t, err)
	assert.Equal(t, constant.DefaultAudioLanguage, turns.lastInput.Language)
	assert.Equal(t, "q.wav", turns.lastInput.Filename)
	assert.True(t, turns.lastInput.IsAudio())

	_, err = svc.SendAudio(context.Background(), &dto.SendAudioRequest{SessionId: uuid.New(), Language: "ta-IN"}, []byte("RIFF"), "q.wav")
	require.NoError(t, err)
	assert.Equal(t, "ta-IN", turns.lastInput.Language)
}

func TestChatService_RetryTurn(t *testing.T) {
	turns := &fakeTurns{resp: &pipeline.Response{Answer: "stored", Source: entity.ProvenanceHistory, Sequence: 4}}
	svc, _ := newChatService(turns, true)

	res, err := svc.RetryTurn(context.Background(), &dto.RetryTurnRequest{RetryKey: "abc:4"})
	require.NoError(t, err)
	assert.Equal(t, "abc:4", turns.retried)
	assert.Equal(t, int64(4), res.Sequence)
	assert.Empty(t, res.Warning)
}

func TestChatService_SessionsAndHistory(t *testing.T) {
	svc, store := newChatService(&fakeTurns{}, true)
	ctx := context.Background()

	created, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	chunks := 2
	require.NoError(t, store.AppendTurnPair(ctx, created.SessionId,
		&entity.ChatTurn{Sequence: 1, Role: entity.RoleUser, Content: "Who was Gandhi?", Metadata: &entity.TurnMetadata{InputType: entity.InputText}},
		&entity.ChatTurn{Sequence: 1, Role: entity.RoleAssistant, Content: "A leader of Indian independence.", Metadata: &entity.TurnMetadata{Source: entity.ProvenanceVectorDB, ChunksUsed: &chunks}},
	))

	list, err := svc.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, created.SessionId, list.Sessions[0].Id)
	assert.Equal(t, "A leader of Indian independence.", list.Sessions[0].LastMessage)

	history, err := svc.GetHistory(ctx, created.SessionId)
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "user", history.Messages[0].Role)
	assert.Equal(t, "text", history.Messages[0].Metadata.InputType)
	assert.Equal(t, "vectordb", history.Messages[1].Metadata.Source)
	assert.Equal(t, 2, *history.Messages[1].Metadata.ChunksUsed)

	_, err = svc.GetHistory(ctx, uuid.New())
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)
}

func TestChatService_Health(t *testing.T) {
	svc, _ := newChatService(&fakeTurns{pending: 2}, false)
	res := svc.Health(context.Background())
	assert.Equal(t, constant.HealthStatusDegraded, res.Status)
	assert.False(t, res.IndexReady)
	assert.Equal(t, 2, res.PendingTurns)

	svc, _ = newChatService(&fakeTurns{}, true)
	res = svc.Health(context.Background())
	assert.Equal(t, constant.HealthStatusOK, res.Status)
	assert.True(t, res.IndexReady)
}
