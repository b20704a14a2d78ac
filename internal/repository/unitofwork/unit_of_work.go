package unitofwork

import (
	"context"

	"ai-voicechat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ChatSessionRepository() contract.ChatSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
	SourceDocumentRepository() contract.SourceDocumentRepository
	ArticleChunkRepository() contract.ArticleChunkRepository
}
