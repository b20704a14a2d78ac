package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Keys        APIKeys
	Ai          AIConfig
	Speech      SpeechConfig
	Translation TranslationConfig
	Rag         RagConfig
	Knowledge   KnowledgeConfig
	Timeouts    TimeoutConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	OtelEnabled        bool
	// "postgres" or "memory"
	SessionBackend string
	// "local" or "redis"
	LockBackend string
}

type DatabaseConfig struct {
	Connection string
}

type APIKeys struct {
	Groq   string
	Sarvam string
	Jina   string
}

type AIConfig struct {
	EmbeddingProvider string // "ollama" or "jina"
	EmbeddingModel    string
	OllamaBaseURL     string
	LLMProvider       string // "groq" or "ollama"
	LLMModel          string
	LLMBaseURL        string
	LLMTemperature    float64
	LLMMaxTokens      int
	LLMContextTokens  int
	TokenEncoding     string
	// "heuristic" or "model"
	RoutingStrategy string
}

type SpeechConfig struct {
	ASRURL string
}

type TranslationConfig struct {
	BaseURL            string
	Model              string
	Mode               string
	TargetLanguage     string
	CharCeiling        int
	SupportedLanguages []string
}

type RagConfig struct {
	TopK           int
	MinSimilarity  float64
	HistoryWindow  int
	RecallWindow   int
	ChunkSize      int
	ChunkOverlap   int
	OverlapTrigger float64
}

type KnowledgeConfig struct {
	DataDir        string
	DefaultArticle string
	WikiBaseURL    string
	IngestTopic    string
}

type TimeoutConfig struct {
	Transcription time.Duration
	Translation   time.Duration
	Embedding     time.Duration
	Retrieval     time.Duration
	Generation    time.Duration
	Persistence   time.Duration
	Bootstrap     time.Duration
	SessionLock   time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			SessionBackend:     getEnv("SESSION_BACKEND", "postgres"),
			LockBackend:        getEnv("LOCK_BACKEND", "local"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Keys: APIKeys{
			Groq:   getEnv("GROQ_API_KEY", ""),
			Sarvam: getEnv("SARVAM_API_KEY", ""),
			Jina:   getEnv("JINA_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "all-minilm"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMProvider:       getEnv("LLM_PROVIDER", "groq"),
			LLMModel:          getEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			LLMTemperature:    getEnvAsFloat("LLM_TEMPERATURE", 0.3),
			LLMMaxTokens:      getEnvAsInt("LLM_MAX_TOKENS", 512),
			LLMContextTokens:  getEnvAsInt("LLM_CONTEXT_TOKENS", 8192),
			TokenEncoding:     getEnv("TOKEN_ENCODING", "cl100k_base"),
			RoutingStrategy:   getEnv("ROUTING_STRATEGY", "heuristic"),
		},
		Speech: SpeechConfig{
			ASRURL: getEnv("ASR_SERVER_URL", "http://localhost:5001"),
		},
		Translation: TranslationConfig{
			BaseURL:            getEnv("SARVAM_BASE_URL", "https://api.sarvam.ai"),
			Model:              getEnv("SARVAM_MODEL", "mayura:v1"),
			Mode:               getEnv("SARVAM_MODE", "formal"),
			TargetLanguage:     getEnv("TRANSLATION_TARGET_LANGUAGE", "en-IN"),
			CharCeiling:        getEnvAsInt("TRANSLATION_CHAR_CEILING", 1000),
			SupportedLanguages: getEnvAsList("SUPPORTED_LANGUAGES", []string{"hi-IN", "bn-IN", "ta-IN", "te-IN", "mr-IN", "gu-IN", "kn-IN", "ml-IN", "pa-IN", "od-IN"}),
		},
		Rag: RagConfig{
			TopK:           getEnvAsInt("TOP_K", 3),
			MinSimilarity:  getEnvAsFloat("MIN_SIMILARITY", 0.3),
			HistoryWindow:  getEnvAsInt("HISTORY_WINDOW", 10),
			RecallWindow:   getEnvAsInt("RECALL_WINDOW", 6),
			ChunkSize:      getEnvAsInt("CHUNK_SIZE", 500),
			ChunkOverlap:   getEnvAsInt("CHUNK_OVERLAP", 100),
			OverlapTrigger: getEnvAsFloat("ROUTING_OVERLAP_THRESHOLD", 0.5),
		},
		Knowledge: KnowledgeConfig{
			DataDir:        getEnv("DATA_DIR", "data"),
			DefaultArticle: getEnv("DEFAULT_ARTICLE", "Mahatma Gandhi"),
			WikiBaseURL:    getEnv("WIKI_API_URL", "https://en.wikipedia.org/w/api.php"),
			IngestTopic:    getEnv("INGEST_TOPIC_NAME", "knowledge.ingest"),
		},
		Timeouts: TimeoutConfig{
			Transcription: getEnvAsDuration("ASR_TIMEOUT", 120*time.Second),
			Translation:   getEnvAsDuration("TRANSLATION_TIMEOUT", 30*time.Second),
			Embedding:     getEnvAsDuration("EMBEDDING_TIMEOUT", 30*time.Second),
			Retrieval:     getEnvAsDuration("RETRIEVAL_TIMEOUT", 10*time.Second),
			Generation:    getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			Persistence:   getEnvAsDuration("PERSISTENCE_TIMEOUT", 10*time.Second),
			Bootstrap:     getEnvAsDuration("BOOTSTRAP_TIMEOUT", 5*time.Minute),
		},
	}
	cfg.Timeouts.SessionLock = getEnvAsDuration("SESSION_LOCK_TTL", cfg.Timeouts.WorstCaseTurn())
	return cfg
}

// WorstCaseTurn is the longest a turn can hold its session lock when every
// stage runs to its deadline: bootstrap, one translation resubmit, and the
// routing call, which shares the generation deadline.
func (t TimeoutConfig) WorstCaseTurn() time.Duration {
	return t.Transcription +
		2*t.Translation +
		t.Generation +
		t.Bootstrap +
		t.Embedding +
		t.Retrieval +
		t.Generation +
		t.Persistence
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// Accepts Go duration strings ("30s") or plain seconds ("30").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
