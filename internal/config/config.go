// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Worker holds configuration for the monitoring daemon.
type Worker struct {
	Monitor  MonitorConfig
	Twitter  TwitterConfig
	DB       DBConfig
	AI       AIConfig
	DingTalk DingTalkConfig
	S3       S3Config
	Features FeatureConfig
}

// API holds configuration for the read-only posts API.
type API struct {
	DB        DBConfig
	S3        S3Config
	Server    ServerConfig
	TokenHash string
}

// MonitorConfig drives the polling loop.
type MonitorConfig struct {
	Accounts  []string
	Interval  time.Duration
	Limit     int
	PostPause time.Duration
}

// TwitterConfig holds the search API credentials.
type TwitterConfig struct {
	APIKey  string
	BaseURL string
}

// DBConfig holds PostgreSQL connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Pass     string
	DBName   string
	SSLMode  string
	MaxConns int
}

// DSN returns a PostgreSQL connection string.
func (c DBConfig) DSN() string {
	dsn := "postgres://" + c.User + ":" + c.Pass +
		"@" + c.Host + ":" + strconv.Itoa(c.Port) +
		"/" + c.DBName + "?sslmode=" + c.SSLMode
	if c.MaxConns > 0 {
		dsn += "&pool_max_conns=" + strconv.Itoa(c.MaxConns)
	}
	return dsn
}

// AIConfig selects and configures the summary provider.
type AIConfig struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	OllamaHost string
}

// Supported summary providers.
const (
	ProviderDashScope = "dashscope"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

const dashScopeBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// DingTalkConfig holds the group robot webhook parameters.
type DingTalkConfig struct {
	AccessToken string
	Secret      string
	WebhookURL  string
	AtMobiles   []string
	AtAll       bool
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// FeatureConfig toggles the optional parts of the worker.
type FeatureConfig struct {
	LinkPreview bool
	DigestCron  string
	MetricsAddr string
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port string
	Host string
}

// Addr returns the full listen address (host:port).
func (c ServerConfig) Addr() string {
	return c.Host + c.Port
}

// LoadDotEnv loads a local .env file if one exists. The process environment
// always wins over values in the file.
func LoadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		slog.Warn("config: load .env", "err", err)
	}
}

// LoadWorker builds a Worker config from environment variables. A missing
// search API key or webhook token is an error.
func LoadWorker() (*Worker, error) {
	c := &Worker{
		Monitor: MonitorConfig{
			Accounts:  splitAccounts(envOr("TARGET_USERS", "whyyoutouzhele")),
			Interval:  time.Duration(envOrInt("MONITOR_INTERVAL", 300)) * time.Second,
			Limit:     envOrInt("MAX_TWEETS_PER_REQUEST", 5),
			PostPause: envOrDuration("POST_PAUSE", 2*time.Second),
		},
		Twitter: TwitterConfig{
			APIKey:  os.Getenv("TWITTER_API_KEY"),
			BaseURL: envOr("TWITTER_API_BASE_URL", "https://api.twitterapi.io"),
		},
		DB: loadDB(),
		AI: AIConfig{
			Provider:   strings.ToLower(envOr("AI_PROVIDER", ProviderDashScope)),
			APIKey:     envOr("AI_API_KEY", os.Getenv("DASHSCOPE_API_KEY")),
			BaseURL:    envOr("AI_BASE_URL", dashScopeBaseURL),
			Model:      envOr("AI_MODEL", "qwen-plus"),
			OllamaHost: envOr("OLLAMA_HOST", "http://localhost:11434"),
		},
		DingTalk: DingTalkConfig{
			AccessToken: os.Getenv("DINGTALK_ACCESS_TOKEN"),
			Secret:      os.Getenv("DINGTALK_SECRET"),
			WebhookURL:  envOr("DINGTALK_WEBHOOK_URL", "https://oapi.dingtalk.com/robot/send"),
			AtMobiles:   splitAndTrim(os.Getenv("DINGTALK_AT_MOBILES")),
			AtAll:       envOrBool("DINGTALK_AT_ALL", false),
		},
		S3: loadS3(),
		Features: FeatureConfig{
			LinkPreview: envOrBool("LINK_PREVIEW_ENABLED", false),
			DigestCron:  strings.TrimSpace(os.Getenv("DIGEST_CRON")),
			MetricsAddr: os.Getenv("METRICS_ADDR"),
		},
	}

	if c.Twitter.APIKey == "" {
		return nil, fmt.Errorf("TWITTER_API_KEY must be set")
	}
	if c.DingTalk.AccessToken == "" {
		return nil, fmt.Errorf("DINGTALK_ACCESS_TOKEN must be set")
	}
	if len(c.Monitor.Accounts) == 0 {
		return nil, fmt.Errorf("TARGET_USERS must contain at least one account")
	}
	if c.Monitor.Interval <= 0 {
		return nil, fmt.Errorf("MONITOR_INTERVAL must be positive")
	}
	if c.Monitor.Limit <= 0 {
		return nil, fmt.Errorf("MAX_TWEETS_PER_REQUEST must be positive")
	}
	if c.Monitor.PostPause < 0 {
		return nil, fmt.Errorf("POST_PAUSE cannot be negative")
	}

	switch c.AI.Provider {
	case ProviderDashScope, ProviderOpenAI, ProviderOllama:
	default:
		return nil, fmt.Errorf("AI_PROVIDER %q is not supported", c.AI.Provider)
	}
	if c.AI.Provider == ProviderOpenAI && os.Getenv("AI_BASE_URL") == "" {
		c.AI.BaseURL = "https://api.openai.com/v1"
	}

	return c, nil
}

// LoadAPI builds an API config from environment variables.
func LoadAPI() (*API, error) {
	c := &API{
		DB: loadDB(),
		S3: loadS3(),
		Server: ServerConfig{
			Port: envOr("SERVER_PORT", ":8080"),
			Host: envOr("SERVER_HOST", ""),
		},
		TokenHash: os.Getenv("API_TOKEN_HASH"),
	}

	if c.TokenHash == "" {
		return nil, fmt.Errorf("API_TOKEN_HASH must be set")
	}

	return c, nil
}

func loadDB() DBConfig {
	return DBConfig{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     envOrInt("DB_PORT", 5432),
		User:     envOr("DB_USER", "tweetwatch"),
		Pass:     envOr("DB_PASS", "tweetwatch"),
		DBName:   envOr("DB_NAME", "tweetwatch"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
		MaxConns: envOrInt("DB_MAX_CONNS", 4),
	}
}

func loadS3() S3Config {
	return S3Config{
		Endpoint:  envOr("S3_ENDPOINT", ""),
		Bucket:    envOr("S3_BUCKET", "tweetwatch-archive"),
		AccessKey: envOr("S3_ACCESS_KEY", ""),
		SecretKey: envOr("S3_SECRET_KEY", ""),
		Region:    envOr("S3_REGION", "us-east-1"),
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envOrBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// splitAccounts parses the tracked account list, dropping empties and any
// leading "@".
func splitAccounts(raw string) []string {
	parts := splitAndTrim(raw)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimPrefix(p, "@")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
