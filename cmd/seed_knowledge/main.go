package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"ai-voicechat-be/internal/config"
	"ai-voicechat-be/internal/model"
	"ai-voicechat-be/internal/pkg/logger"
	"ai-voicechat-be/internal/repository/unitofwork"
	"ai-voicechat-be/pkg/database"
	"ai-voicechat-be/pkg/embedding"
	"ai-voicechat-be/pkg/embedding/jina"
	"ai-voicechat-be/pkg/events"
	"ai-voicechat-be/pkg/knowledge"
	"ai-voicechat-be/pkg/wiki"
)

// seed_knowledge indexes every article in DATA_DIR, fetching extra titles
// from Wikipedia first. Re-running it refreshes chunks in place.
func main() {
	fetch := flag.String("fetch", "", "Wikipedia query to download into DATA_DIR before indexing")
	flag.Parse()

	cfg := config.Load()
	log := logger.NewZapLogger("logs/seed.log", false)
	defer log.Sync()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		fmt.Printf("❌ Database connection failed: %v\n", err)
		os.Exit(1)
	}
	if err := model.Migrate(db); err != nil {
		fmt.Printf("❌ Migration failed: %v\n", err)
		os.Exit(1)
	}

	var embedder embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "jina" {
		embedder = jina.NewJinaProvider(cfg.Keys.Jina, model.EmbeddingDimensions)
	} else {
		embedder = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Bootstrap)
	defer cancel()

	loader := knowledge.NewLoader(cfg.Knowledge.DataDir, cfg.Knowledge.DefaultArticle, wiki.NewClient(cfg.Knowledge.WikiBaseURL), log)
	if *fetch != "" {
		src, err := loader.Fetch(ctx, *fetch)
		if err != nil {
			fmt.Printf("❌ Fetch %q failed: %v\n", *fetch, err)
			os.Exit(1)
		}
		fmt.Printf("📥 Saved %q (%d chars)\n", src.Title, len(src.Content))
	}

	sources, err := loader.Load(ctx)
	if err != nil {
		fmt.Printf("❌ Load failed: %v\n", err)
		os.Exit(1)
	}

	indexer := knowledge.NewIndexer(unitofwork.NewRepositoryFactory(db), embedder, events.NopPublisher{}, log, knowledge.IndexerConfig{
		ChunkSize:      cfg.Rag.ChunkSize,
		ChunkOverlap:   cfg.Rag.ChunkOverlap,
		EmbedTimeout:   cfg.Timeouts.Embedding,
		EmbedAttempts:  3,
		EmbedBaseDelay: 500 * time.Millisecond,
	})

	total := 0
	for _, src := range sources {
		n, err := indexer.IndexDocument(ctx, src)
		if err != nil {
			fmt.Printf("❌ %s: %v\n", src.Title, err)
			os.Exit(1)
		}
		fmt.Printf("✅ %s: %d chunks\n", src.Title, n)
		total += n
	}
	fmt.Printf("\n📚 Indexed %d documents, %d chunks\n", len(sources), total)
}
