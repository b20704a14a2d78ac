package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-voicechat-be/internal/dto"
	"ai-voicechat-be/internal/pkg/logger"
	"ai-voicechat-be/pkg/knowledge"
	"ai-voicechat-be/pkg/wiki"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "knowledge.ingest.test"

// scriptedSource fails with the queued errors before answering.
type scriptedSource struct {
	mu      sync.Mutex
	errs    []error
	queries []string
}

func (s *scriptedSource) Fetch(ctx context.Context, query string) (knowledge.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return knowledge.Source{}, err
	}
	return knowledge.Source{Title: query, Content: "article about " + query}, nil
}

func (s *scriptedSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

type signallingIndexer struct {
	indexed chan knowledge.Source
}

func (ix *signallingIndexer) IndexDocument(ctx context.Context, src knowledge.Source) (int, error) {
	ix.indexed <- src
	return 3, nil
}

func newIngest(t *testing.T, source *scriptedSource) (IIngestService, *signallingIndexer) {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	indexer := &signallingIndexer{indexed: make(chan knowledge.Source, 4)}
	svc := NewIngestService(NewPublisherService(testTopic, pubSub), pubSub, testTopic, source, indexer, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, svc.Consume(ctx))
	return svc, indexer
}

func TestIngestService_IndexesQueuedArticle(t *testing.T) {
	source := &scriptedSource{}
	svc, indexer := newIngest(t, source)

	res, err := svc.Enqueue(context.Background(), &dto.IngestRequest{Query: "  Jawaharlal Nehru "})
	require.NoError(t, err)
	assert.NotEmpty(t, res.JobId)
	assert.Equal(t, "Jawaharlal Nehru", res.Query)

	select {
	case src := <-indexer.indexed:
		assert.Equal(t, "Jawaharlal Nehru", src.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("article was not indexed")
	}
}

func TestIngestService_RedeliversTransientFailure(t *testing.T) {
	source := &scriptedSource{errs: []error{errors.New("wikipedia request failed: connection reset")}}
	svc, indexer := newIngest(t, source)

	_, err := svc.Enqueue(context.Background(), &dto.IngestRequest{Query: "Salt March"})
	require.NoError(t, err)

	select {
	case src := <-indexer.indexed:
		assert.Equal(t, "Salt March", src.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("nacked job was not redelivered")
	}
	assert.Equal(t, 2, source.calls())
}

func TestIngestService_DropsUnknownArticle(t *testing.T) {
	source := &scriptedSource{errs: []error{wiki.ErrNoArticle}}
	svc, indexer := newIngest(t, source)

	_, err := svc.Enqueue(context.Background(), &dto.IngestRequest{Query: "zzqx"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return source.calls() == 1 }, 2*time.Second, 10*time.Millisecond)
	select {
	case <-indexer.indexed:
		t.Fatal("unknown article must not be indexed")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 1, source.calls())
}
