package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/internal/model"
	"ai-voicechat-be/internal/pkg/logger"
	"ai-voicechat-be/internal/repository/contract"
	"ai-voicechat-be/internal/repository/specification"
	"ai-voicechat-be/internal/repository/unitofwork"
	"ai-voicechat-be/pkg/embedding"
	"ai-voicechat-be/pkg/wiki"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls int
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, query string) (*wiki.Article, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &wiki.Article{Title: query, URL: "https://en.wikipedia.org/wiki/X", Content: "Gandhi led the Salt March."}, nil
}

func TestLoaderReadsDirectoryInOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("Title: Alpha\nURL: https://x\n\nfirst body"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.txt"), []byte("  \n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0o644))

	fetcher := &fakeFetcher{}
	l := NewLoader(dir, "Mahatma Gandhi", fetcher, logger.NewNopLogger())

	sources, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 2)

	assert.Equal(t, Source{Title: "Alpha", URL: "https://x", Content: "first body"}, sources[0])
	assert.Equal(t, Source{Title: "b", Content: "second"}, sources[1])
	assert.Equal(t, 0, fetcher.calls)
}

func TestLoaderFetchesAndSavesDefaultArticle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	fetcher := &fakeFetcher{}
	l := NewLoader(dir, "Mahatma Gandhi", fetcher, logger.NewNopLogger())

	sources, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "Mahatma Gandhi", sources[0].Title)

	raw, err := os.ReadFile(filepath.Join(dir, "mahatma_gandhi.txt"))
	require.NoError(t, err)
	assert.Equal(t, sources[0], parseSource(string(raw)))

	// second load reads the saved file instead of fetching again
	again, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sources, again)
	assert.Equal(t, 1, fetcher.calls)
}

func TestLoaderFetchFailure(t *testing.T) {
	l := NewLoader(t.TempDir(), "Mahatma Gandhi", &fakeFetcher{err: wiki.ErrNoArticle}, logger.NewNopLogger())
	_, err := l.Load(context.Background())
	assert.ErrorIs(t, err, wiki.ErrNoArticle)
}

type fakeCounter struct {
	n atomic.Int64
}

func (c *fakeCounter) Count(context.Context, ...specification.Specification) (int64, error) {
	return c.n.Load(), nil
}

type staticLoader struct {
	sources []Source
	err     error
}

func (l *staticLoader) Load(context.Context) ([]Source, error) {
	return l.sources, l.err
}

type countingIndexer struct {
	counter *fakeCounter
	builds  atomic.Int32
	fail    atomic.Bool
}

func (ix *countingIndexer) IndexDocument(_ context.Context, src Source) (int, error) {
	ix.builds.Add(1)
	time.Sleep(20 * time.Millisecond)
	if ix.fail.Load() {
		return 0, errors.New("embedding backend down")
	}
	ix.counter.n.Add(4)
	return 4, nil
}

func TestEnsureIndexBuildsOnceUnderConcurrency(t *testing.T) {
	counter := &fakeCounter{}
	indexer := &countingIndexer{counter: counter}
	b := NewBootstrapper(counter, &staticLoader{sources: []Source{{Title: "Gandhi", Content: "x"}}}, indexer, nil, time.Minute, logger.NewNopLogger())

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = b.EnsureIndex(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), indexer.builds.Load())
	assert.True(t, b.Ready())
}

func TestEnsureIndexSkipsBuildWhenPopulated(t *testing.T) {
	counter := &fakeCounter{}
	counter.n.Store(10)
	indexer := &countingIndexer{counter: counter}
	b := NewBootstrapper(counter, &staticLoader{}, indexer, nil, time.Minute, logger.NewNopLogger())

	require.NoError(t, b.EnsureIndex(context.Background()))
	assert.Equal(t, int32(0), indexer.builds.Load())
	assert.True(t, b.Ready())
}

func TestEnsureIndexRetriesAfterFailure(t *testing.T) {
	counter := &fakeCounter{}
	indexer := &countingIndexer{counter: counter}
	indexer.fail.Store(true)
	b := NewBootstrapper(counter, &staticLoader{sources: []Source{{Title: "Gandhi", Content: "x"}}}, indexer, nil, time.Minute, logger.NewNopLogger())

	assert.Error(t, b.EnsureIndex(context.Background()))
	assert.False(t, b.Ready())

	indexer.fail.Store(false)
	require.NoError(t, b.EnsureIndex(context.Background()))
	assert.True(t, b.Ready())
	assert.Equal(t, int32(2), indexer.builds.Load())
}

func TestEnsureIndexEmptyCorpus(t *testing.T) {
	b := NewBootstrapper(&fakeCounter{}, &staticLoader{}, &countingIndexer{counter: &fakeCounter{}}, nil, time.Minute, logger.NewNopLogger())
	assert.ErrorIs(t, b.EnsureIndex(context.Background()), ErrEmptyCorpus)
}

func TestEnsureIndexWaiterHonoursContext(t *testing.T) {
	counter := &fakeCounter{}
	b := NewBootstrapper(counter, &staticLoader{}, &countingIndexer{counter: counter}, nil, time.Minute, logger.NewNopLogger())
	b.sem <- struct{}{} // a build is in progress

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.EnsureIndex(ctx), context.DeadlineExceeded)
}

// Indexer

type fakeDocRepo struct {
	contract.SourceDocumentRepository
	id uuid.UUID
}

func (r *fakeDocRepo) Upsert(_ context.Context, doc *entity.SourceDocument) error {
	doc.Id = r.id
	return nil
}

type fakeChunkRepo struct {
	contract.ArticleChunkRepository
	deleted []uuid.UUID
	stored  []*entity.ArticleChunk
	err     error
}

func (r *fakeChunkRepo) DeleteByDocumentId(_ context.Context, id uuid.UUID) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *fakeChunkRepo) CreateBulk(_ context.Context, chunks []*entity.ArticleChunk) error {
	if r.err != nil {
		return r.err
	}
	r.stored = append(r.stored, chunks...)
	return nil
}

type fakeUoW struct {
	unitofwork.UnitOfWork
	docs      *fakeDocRepo
	chunks    *fakeChunkRepo
	committed bool
	rolled    bool
}

func (u *fakeUoW) Begin(context.Context) error { return nil }

func (u *fakeUoW) Commit() error {
	u.committed = true
	return nil
}

func (u *fakeUoW) Rollback() error {
	if !u.committed {
		u.rolled = true
	}
	return nil
}

func (u *fakeUoW) SourceDocumentRepository() contract.SourceDocumentRepository { return u.docs }

func (u *fakeUoW) ArticleChunkRepository() contract.ArticleChunkRepository { return u.chunks }

type fakeFactory struct {
	uow *fakeUoW
}

func (f *fakeFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return f.uow }

type flakyEmbedder struct {
	failures int
	calls    int
	dims     int
}

func (e *flakyEmbedder) Generate(context.Context, string, string) (*embedding.EmbeddingResponse, error) {
	e.calls++
	if e.calls <= e.failures {
		return nil, errors.New("503")
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: make([]float32, e.dims)}}, nil
}

func newTestIndexer(emb embedding.EmbeddingProvider, uow *fakeUoW) *Indexer {
	return NewIndexer(&fakeFactory{uow: uow}, emb, nil, logger.NewNopLogger(), IndexerConfig{
		ChunkSize:      50,
		ChunkOverlap:   10,
		EmbedAttempts:  3,
		EmbedBaseDelay: time.Millisecond,
	})
}

func TestIndexDocument(t *testing.T) {
	docID := uuid.New()
	uow := &fakeUoW{docs: &fakeDocRepo{id: docID}, chunks: &fakeChunkRepo{}}
	emb := &flakyEmbedder{failures: 1, dims: model.EmbeddingDimensions}

	content := "Gandhi was born in Porbandar. He studied law in London. He led the Salt March in 1930. He was assassinated in 1948."
	n, err := newTestIndexer(emb, uow).IndexDocument(context.Background(), Source{Title: "Gandhi", Content: content})
	require.NoError(t, err)

	assert.Greater(t, n, 1)
	assert.Len(t, uow.chunks.stored, n)
	assert.Equal(t, []uuid.UUID{docID}, uow.chunks.deleted)
	assert.True(t, uow.committed)
	for i, c := range uow.chunks.stored {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, docID, c.DocumentId)
	}
}

func TestIndexDocumentRejectsWrongDimensions(t *testing.T) {
	uow := &fakeUoW{docs: &fakeDocRepo{id: uuid.New()}, chunks: &fakeChunkRepo{}}
	emb := &flakyEmbedder{dims: 768}

	_, err := newTestIndexer(emb, uow).IndexDocument(context.Background(), Source{Title: "Gandhi", Content: "short text"})
	assert.Error(t, err)
	assert.Equal(t, 1, emb.calls)
	assert.False(t, uow.committed)
}

func TestIndexDocumentRollsBackOnStoreFailure(t *testing.T) {
	uow := &fakeUoW{docs: &fakeDocRepo{id: uuid.New()}, chunks: &fakeChunkRepo{err: errors.New("disk full")}}
	emb := &flakyEmbedder{dims: model.EmbeddingDimensions}

	_, err := newTestIndexer(emb, uow).IndexDocument(context.Background(), Source{Title: "Gandhi", Content: "short text"})
	assert.Error(t, err)
	assert.True(t, uow.rolled)
}

func TestIndexDocumentEmptySource(t *testing.T) {
	uow := &fakeUoW{docs: &fakeDocRepo{}, chunks: &fakeChunkRepo{}}
	_, err := newTestIndexer(&flakyEmbedder{dims: model.EmbeddingDimensions}, uow).IndexDocument(context.Background(), Source{Title: "Empty"})
	assert.ErrorIs(t, err, ErrNoChunks)
}
