package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// generateRunID creates a unique pipeline run ID. The hostname keeps
// runs attributable, the UUID keeps concurrent runs on one host apart.
func generateRunID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "ingest"
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])
}

type Config struct {
	Environment string

	// Database
	DatabaseURL string
	DBHost      string
	DBPort      int
	DBName      string
	DBUsername  string
	DBPassword  string

	// Database connect retry
	DBConnectAttempts int
	DBConnectDelaySec int

	// Object store
	S3Bucket  string
	AWSRegion string

	// Mail provider
	Provider        string // outlook, gmail
	TokenEndpoint   string
	RefreshToken    string
	ProviderTimeout time.Duration

	// Orchestrator trigger
	TriggerURL      string
	TriggerUsername string
	TriggerPassword string

	// OpenAI
	OpenAIAPIKey   string
	EmbeddingModel string
	EmbeddingDim   int

	// Vector store
	VectorDatabaseURL  string
	CollectionAtToken  string
	CollectionDotToken string
	IndexLists         int

	// Text preprocessing
	MaxTokens int

	// Extraction
	DownloadDir string

	// Worker pool
	RunID          string
	WorkerCount    int
	WorkerChanSize int

	// Job queue
	DefaultJobStatus string
}

func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnvInt("DB_PORT", 5432),
		DBName:      getEnv("DB_NAME", ""),
		DBUsername:  getEnv("DB_USERNAME", ""),
		DBPassword:  getEnv("DB_PASSWORD", ""),

		DBConnectAttempts: getEnvInt("DB_CONNECT_ATTEMPTS", 3),
		DBConnectDelaySec: getEnvInt("DB_CONNECT_DELAY_SEC", 2),

		// Object store
		S3Bucket:  getEnv("S3_BUCKET_NAME", ""),
		AWSRegion: getEnv("AWS_REGION", ""),

		// Mail provider
		Provider:        getEnv("MAIL_PROVIDER", "outlook"),
		TokenEndpoint:   getEnv("TOKEN_ENDPOINT", ""),
		RefreshToken:    getEnv("REFRESH_TOKEN", ""),
		ProviderTimeout: time.Duration(getEnvInt("PROVIDER_TIMEOUT_SEC", 30)) * time.Second,

		// Orchestrator trigger
		TriggerURL:      getEnv("TRIGGER_URL", ""),
		TriggerUsername: getEnv("TRIGGER_USERNAME", ""),
		TriggerPassword: getEnv("TRIGGER_PASSWORD", ""),

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-large"),
		EmbeddingDim:   getEnvInt("EMBEDDING_DIM", 3072),

		// Vector store
		VectorDatabaseURL:  getEnv("VECTOR_DATABASE_URL", ""),
		CollectionAtToken:  getEnv("COLLECTION_AT_TOKEN", "_at_"),
		CollectionDotToken: getEnv("COLLECTION_DOT_TOKEN", "_dot_"),
		IndexLists:         getEnvInt("INDEX_LISTS", 1024),

		// Text preprocessing
		MaxTokens: getEnvInt("MAX_TOKENS", 7000),

		// Extraction
		DownloadDir: getEnv("DOWNLOAD_DIRECTORY", "downloads"),

		// Worker pool
		RunID:          getEnv("RUN_ID", generateRunID()),
		WorkerCount:    getEnvInt("WORKER_COUNT", 4),
		WorkerChanSize: getEnvInt("WORKER_CHAN_SIZE", 16),

		// Job queue
		DefaultJobStatus: getEnv("DEFAULT_JOB_STATUS", "pending"),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = buildDatabaseURL(cfg)
	}
	if cfg.VectorDatabaseURL == "" {
		cfg.VectorDatabaseURL = cfg.DatabaseURL
	}

	return cfg, nil
}

// buildDatabaseURL assembles a postgres URL from the discrete DB_* options.
func buildDatabaseURL(cfg *Config) string {
	if cfg.DBName == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.DBUsername, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
