package bootstrap

import (
	"context"
	"fmt"
	"time"

	"ai-voicechat-be/internal/config"
	"ai-voicechat-be/internal/constant"
	"ai-voicechat-be/internal/controller"
	"ai-voicechat-be/internal/model"
	"ai-voicechat-be/internal/pkg/logger"
	"ai-voicechat-be/internal/repository/implementation"
	"ai-voicechat-be/internal/repository/memory"
	"ai-voicechat-be/internal/repository/unitofwork"
	"ai-voicechat-be/internal/service"
	"ai-voicechat-be/pkg/asr"
	"ai-voicechat-be/pkg/embedding"
	"ai-voicechat-be/pkg/embedding/jina"
	"ai-voicechat-be/pkg/events"
	"ai-voicechat-be/pkg/knowledge"
	"ai-voicechat-be/pkg/llm"
	"ai-voicechat-be/pkg/llm/factory"
	"ai-voicechat-be/pkg/lock"
	"ai-voicechat-be/pkg/rag/pipeline"
	"ai-voicechat-be/pkg/rag/prompt"
	"ai-voicechat-be/pkg/rag/retriever"
	"ai-voicechat-be/pkg/rag/router"
	"ai-voicechat-be/pkg/translation"
	"ai-voicechat-be/pkg/wiki"

	pktNats "ai-voicechat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	maxTopK         = 10
	pendingTurnTTL  = time.Hour
	embedAttempts   = 3
	embedRetryDelay = 500 * time.Millisecond
)

type Container struct {
	// Controllers
	ChatController      controller.IChatController
	KnowledgeController controller.IKnowledgeController
	HealthController    controller.IHealthController

	// Background Services (Exposed for main.go to run)
	IngestService service.IIngestService
	Bootstrapper  *knowledge.Bootstrapper
	Logger        logger.ILogger

	db      *gorm.DB
	pubSub  *gochannel.GoChannel
	natsPub *pktNats.Publisher
	rdb     *redis.Client
}

func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	ingestLogger := logger.NewIsolatedLogger("logs/ingest.log")

	c := &Container{db: db, Logger: sysLogger}

	// 2. Event Bus
	c.pubSub = gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 16},
		watermill.NewStdLogger(false, false),
	)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			sysLogger.Warn(constant.ModuleContainer, "NATS unavailable, events are dropped", map[string]interface{}{"error": err.Error()})
		} else {
			c.natsPub = natsPub
			publisher = natsPub
		}
	}

	// 3. Locks
	var sessionLocker, bootstrapLocker lock.Locker = lock.NewLocal(), nil
	if cfg.App.LockBackend == "redis" {
		rdb, err := newRedisClient(cfg.App.RedisURL)
		if err != nil {
			return nil, err
		}
		c.rdb = rdb
		sessionLocker = lock.NewRedis(rdb, "voicechat:lock:", cfg.Timeouts.SessionLock)
		bootstrapLocker = lock.NewRedis(rdb, "voicechat:lock:", cfg.Timeouts.Bootstrap)
	}

	// 4. Model Providers
	embeddingProvider, err := newEmbeddingProvider(cfg)
	if err != nil {
		return nil, err
	}
	sysLogger.Info(constant.ModuleContainer, "Embedding provider ready", map[string]interface{}{
		"provider": cfg.Ai.EmbeddingProvider,
		"model":    cfg.Ai.EmbeddingModel,
	})

	llmProvider, err := factory.NewLLMProvider(factory.ProviderConfig{
		Type:        cfg.Ai.LLMProvider,
		Model:       cfg.Ai.LLMModel,
		BaseURL:     cfg.Ai.LLMBaseURL,
		APIKey:      cfg.Keys.Groq,
		Temperature: cfg.Ai.LLMTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	sysLogger.Info(constant.ModuleContainer, "LLM provider ready", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	var tokenizer prompt.Tokenizer = prompt.HeuristicTokenizer{}
	if tk, err := prompt.NewTiktokenTokenizer(cfg.Ai.TokenEncoding); err != nil {
		sysLogger.Warn(constant.ModuleContainer, "tiktoken unavailable, using heuristic token counts", map[string]interface{}{"error": err.Error()})
	} else {
		tokenizer = tk
	}
	prompts := prompt.NewBuilder(tokenizer, cfg.Ai.LLMContextTokens, cfg.Ai.LLMMaxTokens)

	// 5. Knowledge Base
	chunkRepo := implementation.NewArticleChunkRepository(db)
	loader := knowledge.NewLoader(cfg.Knowledge.DataDir, cfg.Knowledge.DefaultArticle, wiki.NewClient(cfg.Knowledge.WikiBaseURL), ingestLogger)
	indexer := knowledge.NewIndexer(uowFactory, embeddingProvider, publisher, ingestLogger, knowledge.IndexerConfig{
		ChunkSize:      cfg.Rag.ChunkSize,
		ChunkOverlap:   cfg.Rag.ChunkOverlap,
		EmbedTimeout:   cfg.Timeouts.Embedding,
		EmbedAttempts:  embedAttempts,
		EmbedBaseDelay: embedRetryDelay,
	})
	c.Bootstrapper = knowledge.NewBootstrapper(chunkRepo, loader, indexer, bootstrapLocker, cfg.Timeouts.Bootstrap, sysLogger)

	// 6. Sessions
	var sessions service.ISessionService
	switch cfg.App.SessionBackend {
	case "memory":
		sessions = memory.NewSessionStore(0)
	case "postgres", "":
		sessions = service.NewSessionService(uowFactory)
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.App.SessionBackend)
	}

	// 7. Pipeline
	orchestrator := pipeline.New(pipeline.Deps{
		Transcriber: asr.NewClient(cfg.Speech.ASRURL),
		Translator: translation.NewClient(translation.Config{
			APIKey:  cfg.Keys.Sarvam,
			BaseURL: cfg.Translation.BaseURL,
			Model:   cfg.Translation.Model,
			Mode:    cfg.Translation.Mode,
			Ceiling: cfg.Translation.CharCeiling,
		}),
		Router:    newRouter(cfg, llmProvider, prompts, sysLogger),
		Guard:     c.Bootstrapper,
		Embedder:  embeddingProvider,
		Retriever: retriever.New(chunkRepo, cfg.Rag.TopK, maxTopK, cfg.Rag.MinSimilarity),
		Prompts:   prompts,
		Generator: pipeline.NewLLMGenerator(llmProvider, cfg.Ai.LLMMaxTokens, cfg.Ai.LLMContextTokens, cfg.Ai.LLMTemperature),
		Sessions:  sessions,
		Locker:    sessionLocker,
		Publisher: publisher,
		Logger:    sysLogger,
	}, pipeline.Config{
		HistoryWindow:      cfg.Rag.HistoryWindow,
		RecallWindow:       cfg.Rag.RecallWindow,
		TopK:               cfg.Rag.TopK,
		TargetLanguage:     cfg.Translation.TargetLanguage,
		SupportedLanguages: cfg.Translation.SupportedLanguages,
		PendingTTL:         pendingTurnTTL,
		Timeouts: pipeline.Timeouts{
			Transcription: cfg.Timeouts.Transcription,
			Translation:   cfg.Timeouts.Translation,
			Embedding:     cfg.Timeouts.Embedding,
			Retrieval:     cfg.Timeouts.Retrieval,
			Generation:    cfg.Timeouts.Generation,
			Persistence:   cfg.Timeouts.Persistence,
		},
	})

	// 8. Services
	chatService := service.NewChatService(sessions, orchestrator, c.Bootstrapper, sysLogger)
	c.IngestService = service.NewIngestService(
		service.NewPublisherService(cfg.Knowledge.IngestTopic, c.pubSub),
		c.pubSub,
		cfg.Knowledge.IngestTopic,
		loader,
		indexer,
		ingestLogger,
	)

	// 9. Controllers
	c.ChatController = controller.NewChatController(chatService)
	c.KnowledgeController = controller.NewKnowledgeController(c.IngestService)
	c.HealthController = controller.NewHealthController(chatService)

	return c, nil
}

// Shutdown releases every connection the container opened.
func (c *Container) Shutdown(ctx context.Context) error {
	var result *multierror.Error

	if err := c.pubSub.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close ingest queue: %w", err))
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		if err := c.rdb.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close redis: %w", err))
		}
	}
	if sqlDB, err := c.db.DB(); err != nil {
		result = multierror.Append(result, fmt.Errorf("get sql handle: %w", err))
	} else if err := sqlDB.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close database: %w", err))
	}
	// stdout sync fails on some terminals; not worth reporting
	_ = c.Logger.Sync()

	return result.ErrorOrNil()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}

func newEmbeddingProvider(cfg *config.Config) (embedding.EmbeddingProvider, error) {
	switch cfg.Ai.EmbeddingProvider {
	case "ollama":
		return embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel), nil
	case "jina":
		if cfg.Keys.Jina == "" {
			return nil, fmt.Errorf("jina embeddings need JINA_API_KEY")
		}
		return jina.NewJinaProvider(cfg.Keys.Jina, model.EmbeddingDimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Ai.EmbeddingProvider)
	}
}

func newRouter(cfg *config.Config, provider llm.LLMProvider, prompts *prompt.Builder, log logger.ILogger) router.Router {
	if cfg.Ai.RoutingStrategy == "model" {
		return router.NewModelAssisted(provider, prompts, cfg.Rag.RecallWindow, log)
	}
	return router.NewHeuristic(cfg.Rag.RecallWindow, cfg.Rag.OverlapTrigger)
}
