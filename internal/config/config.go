package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the api and dm-worker
// binaries. Values come from environment variables with local development
// defaults where the value is not security sensitive.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Topics    TopicConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Auth      AuthConfig
	Retry     RetryConfig
	Chat      ChatConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL string
}

// KafkaConfig defines broker information for the DM fan-out queue.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
}

// TopicConfig enumerates the topics used by the DM pipeline.
type TopicConfig struct {
	DMRequest string
	DMStatus  string
	DMDLQ     string
}

// RateLimitConfig controls the per-creator outbound message quota.
type RateLimitConfig struct {
	MaxRequests    int
	Window         time.Duration
	BurstAllowance int
}

// WebhookConfig holds the shared secret and replay tolerance for the
// inbound webhook receiver.
type WebhookConfig struct {
	Secret string
	MaxAge time.Duration
}

// AuthConfig controls token lifetimes and the bcrypt cost used at signup.
type AuthConfig struct {
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

// RetryConfig controls worker retry and backoff behaviour.
type RetryConfig struct {
	MaxAttempts        int
	BaseBackoff        time.Duration
	MaxBackoff         time.Duration
	WorkerConcurrency  int
	IdempotencyTTL     time.Duration
	IdempotencyRetries int
}

// ChatConfig maps router model names to deployment identifiers.
type ChatConfig struct {
	DeployDeepSeek   string
	DeployLlama      string
	DeployMistral    string
	DeployClassifier string
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.Port = ldr.getInt("APP_PORT", 8080, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Database.URL = ldr.getString("DATABASE_URL", "", true)

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", true)
	cfg.Kafka.ConsumerGroup = ldr.getString("DM_CONSUMER_GROUP", "dm-worker", false)

	cfg.Topics.DMRequest = ldr.getString("KAFKA_DM_REQUEST_TOPIC", "dm.request", false)
	cfg.Topics.DMStatus = ldr.getString("KAFKA_DM_STATUS_TOPIC", "dm.status", false)
	cfg.Topics.DMDLQ = ldr.getString("KAFKA_DM_DLQ_TOPIC", "dm.dlq", false)

	cfg.RateLimit.MaxRequests = ldr.getInt("RATE_LIMIT_MAX_REQUESTS", 10, false)
	cfg.RateLimit.Window = ldr.getDuration("RATE_LIMIT_WINDOW_SECONDS", 60*time.Second, false)
	cfg.RateLimit.BurstAllowance = ldr.getInt("RATE_LIMIT_BURST_ALLOWANCE", 0, false)

	cfg.Webhook.Secret = ldr.getString("WEBHOOK_SECRET", "", true)
	cfg.Webhook.MaxAge = ldr.getDuration("WEBHOOK_MAX_AGE_SECONDS", 300*time.Second, false)

	cfg.Auth.AccessTokenTTL = ldr.getDuration("ACCESS_TOKEN_TTL_SECONDS", 15*time.Minute, false)
	cfg.Auth.RefreshTokenTTL = ldr.getDuration("REFRESH_TOKEN_TTL_SECONDS", 30*24*time.Hour, false)
	cfg.Auth.BcryptCost = ldr.getInt("BCRYPT_COST", 12, false)

	cfg.Retry.MaxAttempts = ldr.getInt("MAX_ATTEMPTS", 3, false)
	cfg.Retry.BaseBackoff = ldr.getDuration("BASE_BACKOFF_SECONDS", 10*time.Second, false)
	cfg.Retry.MaxBackoff = ldr.getDuration("MAX_BACKOFF_SECONDS", 120*time.Second, false)
	cfg.Retry.WorkerConcurrency = ldr.getInt("WORKER_CONCURRENCY", 10, false)
	cfg.Retry.IdempotencyTTL = ldr.getDuration("IDEMPOTENCY_TTL_SECONDS", 24*time.Hour, false)
	cfg.Retry.IdempotencyRetries = ldr.getInt("IDEMPOTENCY_MAX_ATTEMPTS", 3, false)

	cfg.Chat.DeployDeepSeek = ldr.getString("CHAT_DEPLOY_DEEPSEEK", "deepseek-r1", false)
	cfg.Chat.DeployLlama = ldr.getString("CHAT_DEPLOY_LLAMA", "llama-3-3-70b", false)
	cfg.Chat.DeployMistral = ldr.getString("CHAT_DEPLOY_MISTRAL", "mistral-large-2411", false)
	cfg.Chat.DeployClassifier = ldr.getString("CHAT_DEPLOY_CLASSIFIER", "phi-4-mini", false)

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

// getDuration reads an integer number of seconds. All duration settings are
// expressed in seconds.
func (l *envLoader) getDuration(key string, def time.Duration, required bool) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		secs, err := strconv.Atoi(val)
		if err != nil || secs < 0 {
			l.addError(fmt.Sprintf("%s must be a non-negative integer (seconds)", key))
			return def
		}
		return time.Duration(secs) * time.Second
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		if required {
			return nil
		}
		return []string{}
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
