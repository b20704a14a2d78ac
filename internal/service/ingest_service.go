package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ai-voicechat-be/internal/constant"
	"ai-voicechat-be/internal/dto"
	"ai-voicechat-be/internal/pkg/logger"
	"ai-voicechat-be/pkg/knowledge"
	"ai-voicechat-be/pkg/wiki"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// IIngestService queues article ingestion and runs the queue consumer.
type IIngestService interface {
	Enqueue(ctx context.Context, req *dto.IngestRequest) (*dto.IngestAcceptedResponse, error)
	Consume(ctx context.Context) error
}

type ArticleSource interface {
	Fetch(ctx context.Context, query string) (knowledge.Source, error)
}

type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
}

type ingestService struct {
	publisher  IPublisherService
	subscriber Subscriber
	topicName  string
	source     ArticleSource
	indexer    knowledge.DocumentIndexer
	logger     logger.ILogger
}

func NewIngestService(
	publisher IPublisherService,
	subscriber Subscriber,
	topicName string,
	source ArticleSource,
	indexer knowledge.DocumentIndexer,
	log logger.ILogger,
) IIngestService {
	return &ingestService{
		publisher:  publisher,
		subscriber: subscriber,
		topicName:  topicName,
		source:     source,
		indexer:    indexer,
		logger:     log,
	}
}

func (s *ingestService) Enqueue(ctx context.Context, req *dto.IngestRequest) (*dto.IngestAcceptedResponse, error) {
	query := strings.TrimSpace(req.Query)
	job := dto.IngestJobMessage{JobId: uuid.NewString(), Query: query}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode ingest job: %w", err)
	}
	if _, err := s.publisher.Publish(ctx, payload); err != nil {
		return nil, fmt.Errorf("publish ingest job: %w", err)
	}

	s.logger.Info(constant.ModuleIngest, "Ingest job queued", map[string]interface{}{
		"job_id": job.JobId,
		"query":  query,
	})
	return &dto.IngestAcceptedResponse{JobId: job.JobId, Query: query}, nil
}

func (s *ingestService) Consume(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, s.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			s.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (s *ingestService) processMessage(ctx context.Context, msg *message.Message) {
	var job dto.IngestJobMessage
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		s.logger.Error(constant.ModuleIngest, "Malformed ingest job", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack() // redelivery cannot fix a bad payload
		return
	}

	details := map[string]interface{}{"job_id": job.JobId, "query": job.Query}

	src, err := s.source.Fetch(ctx, job.Query)
	if err != nil {
		details["error"] = err.Error()
		if errors.Is(err, wiki.ErrNoArticle) {
			s.logger.Warn(constant.ModuleIngest, "No article found", details)
			msg.Ack()
			return
		}
		s.logger.Error(constant.ModuleIngest, "Article fetch failed", details)
		msg.Nack()
		return
	}

	chunks, err := s.indexer.IndexDocument(ctx, src)
	if err != nil {
		details["error"] = err.Error()
		s.logger.Error(constant.ModuleIngest, "Indexing failed", details)
		msg.Nack()
		return
	}

	details["title"] = src.Title
	details["chunks"] = chunks
	s.logger.Info(constant.ModuleIngest, "Article indexed", details)
	msg.Ack()
}
