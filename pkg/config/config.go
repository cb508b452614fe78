package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// OpenAI設定（Embeddings + 生成）
	OpenAI OpenAIConfig

	// Tavily検索API設定
	Tavily TavilyConfig

	// ワーカー設定
	Worker WorkerConfig

	// RAG（チャンク分割・検索）設定
	Retrieval RetrievalConfig

	// HTTPサーバ設定
	Server ServerConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN はpgx用の接続文字列を組み立てる
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	LLMModel           string
	Temperature        float64
	MaxTokens          int
	RequestTimeout     time.Duration
	// MinRequestInterval はAPI呼び出しの最小間隔（スロットリング）
	MinRequestInterval time.Duration
}

// TavilyConfig はTavily検索API設定
type TavilyConfig struct {
	APIKey         string
	BaseURL        string
	RequestTimeout time.Duration
}

// WorkerConfig はジョブワーカーの設定
type WorkerConfig struct {
	// PollInterval は未クレームジョブのポーリング間隔
	PollInterval time.Duration
	// JobTimeout は1ジョブあたりの実行タイムアウト
	JobTimeout time.Duration
	// ClaimBatchSize は1回のポーリングでクレームを試みる最大ジョブ数
	ClaimBatchSize int
	// ShutdownGrace は停止時に実行中ジョブの完了を待つ猶予時間
	ShutdownGrace time.Duration
}

// RetrievalConfig はチャンク分割と類似検索の設定
type RetrievalConfig struct {
	// ChunkSize はチャンクあたりのトークン数
	ChunkSize int
	// ChunkOverlap は隣接チャンク間のオーバーラップトークン数
	ChunkOverlap int
	// TopK は検索で取得するチャンク数
	TopK int
	// MaxSearchResults は検索プロバイダから取得する最大ドキュメント数
	MaxSearchResults int
	// SectionWordBudget はセクション生成時の目安語数
	SectionWordBudget int
}

// ServerConfig はHTTPサーバ設定
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "blograg"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "blograg"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			LLMModel:           getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
			Temperature:        getEnvAsFloat("OPENAI_TEMPERATURE", 0.5),
			MaxTokens:          getEnvAsInt("OPENAI_MAX_TOKENS", 4096),
			RequestTimeout:     getEnvAsDuration("OPENAI_REQUEST_TIMEOUT", 60*time.Second),
			MinRequestInterval: getEnvAsDuration("OPENAI_MIN_REQUEST_INTERVAL", 0),
		},
		Tavily: TavilyConfig{
			APIKey:         getEnv("TAVILY_API_KEY", ""),
			BaseURL:        getEnv("TAVILY_BASE_URL", "https://api.tavily.com"),
			RequestTimeout: getEnvAsDuration("TAVILY_REQUEST_TIMEOUT", 30*time.Second),
		},
		Worker: WorkerConfig{
			PollInterval:   getEnvAsDuration("WORKER_POLL_INTERVAL", 2*time.Second),
			JobTimeout:     getEnvAsDuration("WORKER_JOB_TIMEOUT", 5*time.Minute),
			ClaimBatchSize: getEnvAsInt("WORKER_CLAIM_BATCH_SIZE", 5),
			ShutdownGrace:  getEnvAsDuration("WORKER_SHUTDOWN_GRACE", 30*time.Second),
		},
		Retrieval: RetrievalConfig{
			ChunkSize:         getEnvAsInt("RETRIEVAL_CHUNK_SIZE", 250),
			ChunkOverlap:      getEnvAsInt("RETRIEVAL_CHUNK_OVERLAP", 50),
			TopK:              getEnvAsInt("RETRIEVAL_TOP_K", 4),
			MaxSearchResults:  getEnvAsInt("RESEARCH_MAX_RESULTS", 10),
			SectionWordBudget: getEnvAsInt("DRAFT_SECTION_WORD_BUDGET", 300),
		},
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数をtime.Durationとして取得します
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
