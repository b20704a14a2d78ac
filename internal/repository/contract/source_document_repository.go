package contract

import (
	"context"

	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/internal/repository/specification"
)

type SourceDocumentRepository interface {
	// Upsert inserts the document or refreshes url/hash of the row with the same title.
	Upsert(ctx context.Context, doc *entity.SourceDocument) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.SourceDocument, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.SourceDocument, error)
}
