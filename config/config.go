package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/letsee/debate-backend/internal/sessions"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Debate   DebateConfig
	Oracle   OracleConfig
	Ticket   TicketConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AWS      AWSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DebateConfig holds the limits stamped onto every new session.
type DebateConfig struct {
	TurnSeconds         int
	TotalSeconds        int
	MaxTurns            int
	TopicRefreshLimit   int
	MaxWarnings         int
	MaxArgumentLength   int
	JudgeTimeoutSec     int
	FallbackOnOracleErr bool
	BlockedPhrases      []string // nil = moderation defaults
}

// Limits converts the debate settings for the session registry.
func (c DebateConfig) Limits() sessions.Limits {
	return sessions.Limits{
		TurnSeconds:       c.TurnSeconds,
		TotalSeconds:      c.TotalSeconds,
		MaxTurns:          c.MaxTurns,
		TopicRefreshLimit: c.TopicRefreshLimit,
		MaxWarnings:       c.MaxWarnings,
	}
}

// JudgeTimeout bounds one judging run.
func (c DebateConfig) JudgeTimeout() time.Duration {
	return time.Duration(c.JudgeTimeoutSec) * time.Second
}

// OracleConfig holds the chat-completion endpoint used for scoring and topics.
type OracleConfig struct {
	APIKey     string // empty = unconfigured
	BaseURL    string
	Model      string
	TimeoutSec int
}

// TicketConfig holds seat ticket settings.
type TicketConfig struct {
	Secret      string
	ExpireHours int
}

// DatabaseConfig holds the PostgreSQL retrieval store connection.
type DatabaseConfig struct {
	URL string // empty = in-memory store
}

// RedisConfig holds the embedding queue connection.
type RedisConfig struct {
	Addr     string // empty = archive inline
	Password string
	DB       int
}

// AWSConfig holds credentials and the export archive bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ExportsBucket        string // empty = archive disabled
	PresignExpireMinutes int
	S3Endpoint           string // S3-compatible endpoint, e.g. MinIO
}

var ErrMissingTicketSecret = errors.New("config: TICKET_SECRET is required")

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	defaults := sessions.DefaultLimits()
	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Debate: DebateConfig{
			TurnSeconds:         getEnvInt("TURN_SECONDS", defaults.TurnSeconds),
			TotalSeconds:        getEnvInt("TOTAL_SECONDS", defaults.TotalSeconds),
			MaxTurns:            getEnvInt("MAX_TURNS", defaults.MaxTurns),
			TopicRefreshLimit:   getEnvInt("TOPIC_REFRESH_LIMIT", defaults.TopicRefreshLimit),
			MaxWarnings:         getEnvInt("MAX_WARNINGS", defaults.MaxWarnings),
			MaxArgumentLength:   getEnvInt("MAX_ARGUMENT_LENGTH", 2000),
			JudgeTimeoutSec:     getEnvInt("JUDGE_TIMEOUT_SEC", 60),
			FallbackOnOracleErr: getEnvBool("JUDGE_FALLBACK_ON_ORACLE_ERROR", false),
			BlockedPhrases:      splitTrim(os.Getenv("BLOCKED_PHRASES"), ","),
		},
		Oracle: OracleConfig{
			APIKey:     getEnv("ORACLE_API_KEY", ""),
			BaseURL:    getEnv("ORACLE_BASE_URL", "https://api.openai.com/v1"),
			Model:      getEnv("ORACLE_MODEL", "gpt-4o-mini"),
			TimeoutSec: getEnvInt("ORACLE_TIMEOUT_SEC", 20),
		},
		Ticket: TicketConfig{
			Secret:      getEnv("TICKET_SECRET", ""),
			ExpireHours: getEnvInt("TICKET_EXPIRE_HOURS", 6),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ExportsBucket:        getEnv("AWS_S3_EXPORTS_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
			S3Endpoint:           getEnv("AWS_S3_ENDPOINT", ""),
		},
	}
	if cfg.Ticket.Secret == "" {
		return nil, ErrMissingTicketSecret
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
