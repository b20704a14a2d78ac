package contract

import (
	"context"

	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ChatMessageRepository stores turns. There is no Update or Delete: turns are immutable.
type ChatMessageRepository interface {
	CreateBulk(ctx context.Context, turns []*entity.ChatTurn) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatTurn, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatTurn, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	MaxSequence(ctx context.Context, sessionId uuid.UUID) (int64, error)
	// LastMessages returns the newest turn per session, keyed by session id.
	LastMessages(ctx context.Context, sessionIds []uuid.UUID) (map[uuid.UUID]*entity.ChatTurn, error)
}
