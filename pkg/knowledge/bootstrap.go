package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"ai-voicechat-be/internal/pkg/logger"
	"ai-voicechat-be/internal/repository/specification"
	"ai-voicechat-be/pkg/lock"
)

const bootstrapLockKey = "knowledge:bootstrap"

var ErrEmptyCorpus = errors.New("knowledge base is empty after bootstrap")

// ChunkCounter reports how many chunks are indexed.
type ChunkCounter interface {
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

// SourceLoader yields documents to index.
type SourceLoader interface {
	Load(ctx context.Context) ([]Source, error)
}

// DocumentIndexer chunks, embeds and stores one document.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, src Source) (int, error)
}

// Bootstrapper guarantees that at most one index build runs at a time and
// that callers only search a populated index. A failed build leaves the
// guard not ready, so the next caller tries again.
type Bootstrapper struct {
	counter ChunkCounter
	loader  SourceLoader
	indexer DocumentIndexer
	// distributed is optional; it serializes builds across processes.
	distributed lock.Locker
	timeout     time.Duration
	logger      logger.ILogger

	ready atomic.Bool
	sem   chan struct{}
}

// NewBootstrapper creates the index guard. distributed may be nil in a
// single process.
func NewBootstrapper(counter ChunkCounter, loader SourceLoader, indexer DocumentIndexer, distributed lock.Locker, timeout time.Duration, log logger.ILogger) *Bootstrapper {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Bootstrapper{
		counter:     counter,
		loader:      loader,
		indexer:     indexer,
		distributed: distributed,
		timeout:     timeout,
		logger:      log,
		sem:         make(chan struct{}, 1),
	}
}

// Ready reports whether the index is known to be populated.
func (b *Bootstrapper) Ready() bool {
	return b.ready.Load()
}

// EnsureIndex returns nil once the index holds at least one chunk.
// Concurrent callers wait for the running build instead of starting another.
func (b *Bootstrapper) EnsureIndex(ctx context.Context) error {
	if b.ready.Load() {
		return nil
	}

	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-b.sem }()

	if b.ready.Load() {
		return nil
	}

	if b.distributed != nil {
		unlock, err := b.distributed.Lock(ctx, bootstrapLockKey)
		if err != nil {
			return fmt.Errorf("acquire bootstrap lock: %w", err)
		}
		defer unlock()
	}

	n, err := b.counter.Count(ctx)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}
	if n > 0 {
		b.ready.Store(true)
		return nil
	}

	if err := b.build(ctx); err != nil {
		b.logger.Error("BOOTSTRAP", "Index build failed", map[string]interface{}{"error": err})
		return err
	}
	b.ready.Store(true)
	return nil
}

func (b *Bootstrapper) build(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	start := time.Now()
	b.logger.Info("BOOTSTRAP", "Knowledge index empty, building", nil)

	sources, err := b.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}

	total := 0
	for _, src := range sources {
		n, err := b.indexer.IndexDocument(ctx, src)
		if err != nil {
			return fmt.Errorf("index %q: %w", src.Title, err)
		}
		total += n
	}
	if total == 0 {
		return ErrEmptyCorpus
	}

	b.logger.Info("BOOTSTRAP", "Knowledge index built", map[string]interface{}{
		"documents":   len(sources),
		"chunks":      total,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}
