package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Feed   FeedConfig
	RAG    RAGConfig
	Scrape ScrapeConfig
	Log    LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	feed, err := loadFeedConfig()
	if err != nil {
		return nil, err
	}

	rag, err := loadRAGConfig()
	if err != nil {
		return nil, err
	}

	scrape, err := loadScrapeConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     ai,
		Feed:   feed,
		RAG:    rag,
		Scrape: scrape,
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "console"),
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey         string
	AccessKey      string
	SecretKey      string
	Model          string
	BaseURL        string
	Region         string
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	StreamResponse bool
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + ARK_MODEL or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("ARK_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:          strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		StreamResponse: stream,
	}, nil
}

// FeedConfig 控制定时追加的预设消息。
type FeedConfig struct {
	Enabled  bool
	Interval time.Duration
}

func loadFeedConfig() (FeedConfig, error) {
	enabled, err := parseBoolEnv("FEED_ENABLED", true)
	if err != nil {
		return FeedConfig{}, err
	}

	interval, err := parseDurationEnv("FEED_INTERVAL", 2*time.Second)
	if err != nil {
		return FeedConfig{}, err
	}
	if interval <= 0 {
		return FeedConfig{}, fmt.Errorf("invalid FEED_INTERVAL value %q: must be positive", os.Getenv("FEED_INTERVAL"))
	}

	return FeedConfig{Enabled: enabled, Interval: interval}, nil
}

// RAGConfig 描述文档检索相关配置。
type RAGConfig struct {
	DataPath       string
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	CachePath      string
	EmbedProvider  string
	OllamaEndpoint string
	OllamaModel    string
	HashDimensions int
}

func loadRAGConfig() (RAGConfig, error) {
	chunkSize, err := parseIntEnvOrDefault("RAG_CHUNK_SIZE", 1000)
	if err != nil {
		return RAGConfig{}, err
	}

	overlap, err := parseIntEnvOrDefault("RAG_CHUNK_OVERLAP", 200)
	if err != nil {
		return RAGConfig{}, err
	}
	if chunkSize <= 0 || overlap < 0 || overlap >= chunkSize {
		return RAGConfig{}, fmt.Errorf("invalid chunking: size=%d overlap=%d", chunkSize, overlap)
	}

	topK, err := parseIntEnvOrDefault("RAG_TOP_K", 3)
	if err != nil {
		return RAGConfig{}, err
	}
	if topK < 1 {
		topK = 1
	}

	dims, err := parseIntEnvOrDefault("EMBED_HASH_DIMENSIONS", 512)
	if err != nil {
		return RAGConfig{}, err
	}

	provider := strings.ToLower(getEnvOrDefault("EMBED_PROVIDER", "hash"))
	if provider != "hash" && provider != "ollama" {
		return RAGConfig{}, fmt.Errorf("unsupported EMBED_PROVIDER %q (use hash or ollama)", provider)
	}

	return RAGConfig{
		DataPath:       strings.TrimSpace(os.Getenv("RAG_DATA_PATH")),
		ChunkSize:      chunkSize,
		ChunkOverlap:   overlap,
		TopK:           topK,
		CachePath:      strings.TrimSpace(os.Getenv("RAG_CACHE_PATH")),
		EmbedProvider:  provider,
		OllamaEndpoint: getEnvOrDefault("OLLAMA_ENDPOINT", "http://localhost:11434"),
		OllamaModel:    getEnvOrDefault("OLLAMA_MODEL", "all-minilm"),
		HashDimensions: dims,
	}, nil
}

// ScrapeConfig 描述网页抓取相关配置。
type ScrapeConfig struct {
	UserAgent   string
	Timeout     time.Duration
	Concurrency int
	CatalogPath string
}

func loadScrapeConfig() (ScrapeConfig, error) {
	timeout, err := parseDurationEnv("SCRAPE_TIMEOUT", 10*time.Second)
	if err != nil {
		return ScrapeConfig{}, err
	}

	concurrency, err := parseIntEnvOrDefault("SCRAPE_CONCURRENCY", 4)
	if err != nil {
		return ScrapeConfig{}, err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	return ScrapeConfig{
		UserAgent:   strings.TrimSpace(os.Getenv("SCRAPE_USER_AGENT")),
		Timeout:     timeout,
		Concurrency: concurrency,
		CatalogPath: strings.TrimSpace(os.Getenv("SCRAPE_CATALOG")),
	}, nil
}

// LogConfig 控制日志级别与输出格式。
type LogConfig struct {
	Level  string
	Format string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseIntEnvOrDefault(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
