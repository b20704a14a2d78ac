package service

import (
	"context"
	"errors"

	"ai-voicechat-be/internal/constant"
	"ai-voicechat-be/internal/dto"
	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/internal/pkg/logger"
	"ai-voicechat-be/pkg/rag/pipeline"

	"github.com/google/uuid"
)

type IChatService interface {
	CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error)
	ListSessions(ctx context.Context) (*dto.ListSessionsResponse, error)
	GetHistory(ctx context.Context, sessionId uuid.UUID) (*dto.ChatHistoryResponse, error)
	SendChat(ctx context.Context, req *dto.SendChatRequest) (*dto.ChatResponse, error)
	SendAudio(ctx context.Context, req *dto.SendAudioRequest, audio []byte, filename string) (*dto.ChatResponse, error)
	RetryTurn(ctx context.Context, req *dto.RetryTurnRequest) (*dto.ChatResponse, error)
	Health(ctx context.Context) *dto.HealthResponse
}

// TurnHandler is the part of *pipeline.Orchestrator the service drives.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionID uuid.UUID, in pipeline.TurnInput) (*pipeline.Response, error)
	RetryPersist(ctx context.Context, retryKey string) (*pipeline.Response, error)
	PendingCount() int
}

type ReadinessReporter interface {
	Ready() bool
}

type chatService struct {
	sessions ISessionService
	turns    TurnHandler
	index    ReadinessReporter
	logger   logger.ILogger
}

func NewChatService(sessions ISessionService, turns TurnHandler, index ReadinessReporter, log logger.ILogger) IChatService {
	return &chatService{
		sessions: sessions,
		turns:    turns,
		index:    index,
		logger:   log,
	}
}

func (s *chatService) CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error) {
	session, err := s.sessions.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info(constant.ModuleChat, "Session created", map[string]interface{}{
		"session_id": session.Id.String(),
	})
	return &dto.CreateSessionResponse{SessionId: session.Id}, nil
}

func (s *chatService) ListSessions(ctx context.Context) (*dto.ListSessionsResponse, error) {
	summaries, err := s.sessions.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	res := &dto.ListSessionsResponse{Sessions: make([]*dto.SessionSummaryResponse, len(summaries))}
	for i, sum := range summaries {
		res.Sessions[i] = &dto.SessionSummaryResponse{
			Id:          sum.Id,
			LastMessage: sum.LastMessage,
			CreatedAt:   sum.CreatedAt,
			UpdatedAt:   sum.UpdatedAt,
		}
	}
	return res, nil
}

func (s *chatService) GetHistory(ctx context.Context, sessionId uuid.UUID) (*dto.ChatHistoryResponse, error) {
	turns, err := s.sessions.GetHistory(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	res := &dto.ChatHistoryResponse{
		SessionId: sessionId,
		Messages:  make([]*dto.ChatTurnResponse, len(turns)),
	}
	for i, t := range turns {
		res.Messages[i] = toTurnResponse(t)
	}
	return res, nil
}

func (s *chatService) SendChat(ctx context.Context, req *dto.SendChatRequest) (*dto.ChatResponse, error) {
	resp, err := s.turns.HandleTurn(ctx, req.SessionId, pipeline.TurnInput{
		Text:     req.Message,
		Language: req.Language,
	})
	return s.answer(req.SessionId, resp, err)
}

func (s *chatService) SendAudio(ctx context.Context, req *dto.SendAudioRequest, audio []byte, filename string) (*dto.ChatResponse, error) {
	language := req.Language
	if language == "" {
		language = constant.DefaultAudioLanguage
	}
	resp, err := s.turns.HandleTurn(ctx, req.SessionId, pipeline.TurnInput{
		Audio:    audio,
		Filename: filename,
		Language: language,
	})
	return s.answer(req.SessionId, resp, err)
}

func (s *chatService) RetryTurn(ctx context.Context, req *dto.RetryTurnRequest) (*dto.ChatResponse, error) {
	resp, err := s.turns.RetryPersist(ctx, req.RetryKey)
	return s.answer(uuid.Nil, resp, err)
}

func (s *chatService) Health(ctx context.Context) *dto.HealthResponse {
	res := &dto.HealthResponse{
		Status:       constant.HealthStatusOK,
		IndexReady:   s.index.Ready(),
		PendingTurns: s.turns.PendingCount(),
	}
	if !res.IndexReady {
		res.Status = constant.HealthStatusDegraded
	}
	return res
}

// answer turns a PersistenceError into a normal response with a warning;
// the answer was computed and the client may retry storing it.
func (s *chatService) answer(sessionId uuid.UUID, resp *pipeline.Response, err error) (*dto.ChatResponse, error) {
	var perr *pipeline.PersistenceError
	if errors.As(err, &perr) {
		s.logger.Warn(constant.ModuleChat, "Answer returned without being stored", map[string]interface{}{
			"session_id": sessionId.String(),
			"retry_key":  perr.RetryKey,
			"error":      perr.Err.Error(),
		})
		out := toChatResponse(perr.Response)
		out.Warning = constant.PersistenceWarning
		out.RetryKey = perr.RetryKey
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	return toChatResponse(resp), nil
}

func toChatResponse(r *pipeline.Response) *dto.ChatResponse {
	return &dto.ChatResponse{
		Answer:         r.Answer,
		Source:         string(r.Source),
		Transcription:  r.Transcription,
		Translation:    r.Translation,
		SourceLanguage: r.SourceLanguage,
		ChunksUsed:     r.ChunksUsed,
		Sequence:       r.Sequence,
	}
}

func toTurnResponse(t *entity.ChatTurn) *dto.ChatTurnResponse {
	res := &dto.ChatTurnResponse{
		Sequence:  t.Sequence,
		Role:      string(t.Role),
		Content:   t.Content,
		CreatedAt: t.CreatedAt,
	}
	if m := t.Metadata; m != nil {
		res.Metadata = &dto.TurnMetadataResponse{
			Source:         string(m.Source),
			Transcription:  m.Transcription,
			SourceLanguage: m.SourceLanguage,
			Translation:    m.Translation,
			InputType:      string(m.InputType),
			ChunksUsed:     m.ChunksUsed,
		}
	}
	return res
}
