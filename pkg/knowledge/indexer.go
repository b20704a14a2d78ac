package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/internal/model"
	"ai-voicechat-be/internal/pkg/logger"
	"ai-voicechat-be/internal/repository/unitofwork"
	"ai-voicechat-be/pkg/embedding"
	"ai-voicechat-be/pkg/events"
	"ai-voicechat-be/pkg/utils"

	"github.com/avast/retry-go/v4"
)

var ErrNoChunks = errors.New("source produced no chunks")

// IndexerConfig sets chunking and embedding retry policy.
type IndexerConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	EmbedTimeout   time.Duration
	EmbedAttempts  uint
	EmbedBaseDelay time.Duration
}

// Indexer chunks a source, embeds every chunk and replaces the document's
// chunks in a single transaction. Re-indexing the same title is idempotent.
type Indexer struct {
	uowFactory unitofwork.RepositoryFactory
	embedder   embedding.EmbeddingProvider
	publisher  events.Publisher
	logger     logger.ILogger
	cfg        IndexerConfig
}

// NewIndexer creates an Indexer that stores chunks through uowFactory.
func NewIndexer(uowFactory unitofwork.RepositoryFactory, embedder embedding.EmbeddingProvider, publisher events.Publisher, log logger.ILogger, cfg IndexerConfig) *Indexer {
	if cfg.EmbedAttempts == 0 {
		cfg.EmbedAttempts = 3
	}
	if cfg.EmbedBaseDelay <= 0 {
		cfg.EmbedBaseDelay = 500 * time.Millisecond
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 30 * time.Second
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Indexer{
		uowFactory: uowFactory,
		embedder:   embedder,
		publisher:  publisher,
		logger:     log,
		cfg:        cfg,
	}
}

// IndexDocument returns the number of chunks stored.
func (ix *Indexer) IndexDocument(ctx context.Context, src Source) (int, error) {
	texts := utils.SplitText(src.Content, ix.cfg.ChunkSize, ix.cfg.ChunkOverlap)
	if len(texts) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoChunks, src.Title)
	}

	start := time.Now()
	chunks := make([]*entity.ArticleChunk, len(texts))
	for i, text := range texts {
		vec, err := ix.embed(ctx, text)
		if err != nil {
			return 0, fmt.Errorf("embed chunk %d of %q: %w", i, src.Title, err)
		}
		chunks[i] = &entity.ArticleChunk{ChunkIndex: i, Content: text, Embedding: vec}
	}

	sum := sha256.Sum256([]byte(src.Content))
	doc := &entity.SourceDocument{
		Title:       src.Title,
		Url:         src.URL,
		ContentHash: hex.EncodeToString(sum[:]),
	}

	uow := ix.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return 0, err
	}
	defer uow.Rollback()

	if err := uow.SourceDocumentRepository().Upsert(ctx, doc); err != nil {
		return 0, fmt.Errorf("upsert document: %w", err)
	}
	for _, c := range chunks {
		c.DocumentId = doc.Id
	}
	if err := uow.ArticleChunkRepository().DeleteByDocumentId(ctx, doc.Id); err != nil {
		return 0, fmt.Errorf("clear old chunks: %w", err)
	}
	if err := uow.ArticleChunkRepository().CreateBulk(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return 0, err
	}

	ix.logger.Info("INDEXER", "Document indexed", map[string]interface{}{
		"title":       doc.Title,
		"document_id": doc.Id.String(),
		"chunks":      len(chunks),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if err := ix.publisher.Publish(ctx, events.KnowledgeIndexed(doc.Id.String(), doc.Title, len(chunks))); err != nil {
		ix.logger.Warn("INDEXER", "Failed to publish knowledge.indexed", map[string]interface{}{"error": err.Error()})
	}
	return len(chunks), nil
}

func (ix *Indexer) embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, ix.cfg.EmbedTimeout)
			defer cancel()

			resp, err := ix.embedder.Generate(callCtx, text, embedding.TaskDocument)
			if err != nil {
				return err
			}
			if n := len(resp.Embedding.Values); n != model.EmbeddingDimensions {
				return retry.Unrecoverable(fmt.Errorf("embedding has %d dimensions, index expects %d", n, model.EmbeddingDimensions))
			}
			vec = resp.Embedding.Values
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(ix.cfg.EmbedAttempts),
		retry.Delay(ix.cfg.EmbedBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			ix.logger.Warn("INDEXER", "Embedding retry", map[string]interface{}{"attempt": n + 1, "error": err.Error()})
		}),
	)
	return vec, err
}
