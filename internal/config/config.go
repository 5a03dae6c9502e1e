// Package config loads the process-wide Config via viper, a nested
// config.Config / config.VectorDatabaseConfig structure whose sub-configs are
// accessed the same way throughout (cfg.VectorDatabase.Driver, etc).
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// VectorDatabaseConfig selects and configures the VectorStore backend.
type VectorDatabaseConfig struct {
	Driver     string `mapstructure:"driver"` // "qdrant" or "pgvector"
	Qdrant     QdrantConfig
	Pgvector   PgvectorConfig
	Namespace  string `mapstructure:"namespace"`
	Dimensions int    `mapstructure:"dimensions"`
}

type QdrantConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PgvectorConfig struct {
	DSN string `mapstructure:"dsn"`
}

// KeyValueStoreConfig configures the Postgres-backed KV store.
type KeyValueStoreConfig struct {
	DSN string `mapstructure:"dsn"`
}

// QueueConfig configures the asynq-backed update queue.
type QueueConfig struct {
	RedisAddr    string `mapstructure:"redis_addr"`
	DrainBatch   int    `mapstructure:"drain_batch"`   // default 10
	DrainWaitSec int    `mapstructure:"drain_wait_sec"` // default 1
}

// LLMConfig configures the chat/embedding provider.
type LLMConfig struct {
	Source     string `mapstructure:"source"` // "local" or "remote"
	Provider   string `mapstructure:"provider"`
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	ChatModel  string `mapstructure:"chat_model"`
	EmbedModel string `mapstructure:"embed_model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// NotificationConfig configures email delivery for both announcements and
// standing-query notifications.
type NotificationConfig struct {
	SMTPAddr         string `mapstructure:"smtp_addr"`
	SMTPUsername     string `mapstructure:"smtp_username"`
	SMTPPassword     string `mapstructure:"smtp_password"`
	FromAddress      string `mapstructure:"from_address"`
	DefaultRecipient string `mapstructure:"default_recipient"` // SES_RECP_EMAIL analog
}

// ForumConfig configures the external forum client.
type ForumConfig struct {
	BaseURL       string   `mapstructure:"base_url"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
	IgnoredCourses []string `mapstructure:"ignored_courses"`
}

// ConversationConfig carries the tunables for context assembly, notification
// thresholds, and the summarizer/scraper schedules.
type ConversationConfig struct {
	ChunksToUse               int           `mapstructure:"chunks_to_use"`                // 9
	ClosenessThreshold        float64       `mapstructure:"closeness_threshold"`          // 0.35
	CitationThresholdMultiplier float64     `mapstructure:"citation_threshold_multiplier"`// 0.7
	MaxNotificationBase       int           `mapstructure:"max_notification_base"`
	SummarizerPoolSize        int           `mapstructure:"summarizer_pool_size"`         // 10
	FreshStartStaleness       time.Duration `mapstructure:"fresh_start_staleness"`        // 48h (2 days)
	AnnouncementWindow        time.Duration `mapstructure:"announcement_window"`          // 48h
	ScrapePause               time.Duration `mapstructure:"scrape_pause"`                 // ~1s
}

// Config is the root configuration object, built once at process startup and
// injected into every component via the DI container (internal/runtime).
type Config struct {
	Environment    string `mapstructure:"environment"`
	VectorDatabase *VectorDatabaseConfig
	KeyValueStore  *KeyValueStoreConfig
	Queue          *QueueConfig
	LLM            *LLMConfig
	Notification   *NotificationConfig
	Forum          *ForumConfig
	Conversation   *ConversationConfig
}

// Load reads configuration from a YAML file (if present) and environment
// variables (COURSEPILOT_*), applying documented fixed constants as
// defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	}
	v.SetEnvPrefix("COURSEPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		VectorDatabase: &VectorDatabaseConfig{},
		KeyValueStore:  &KeyValueStoreConfig{},
		Queue:          &QueueConfig{},
		LLM:            &LLMConfig{},
		Notification:   &NotificationConfig{},
		Forum:          &ForumConfig{},
		Conversation:   &ConversationConfig{},
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("vectordatabase.driver", "qdrant")
	v.SetDefault("vectordatabase.namespace", "piazza")
	v.SetDefault("vectordatabase.dimensions", 1536)
	v.SetDefault("vectordatabase.qdrant.host", "localhost")
	v.SetDefault("vectordatabase.qdrant.port", 6334)
	v.SetDefault("queue.drain_batch", 10)
	v.SetDefault("queue.drain_wait_sec", 1)
	v.SetDefault("llm.source", "remote")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.chat_model", "gpt-5")
	v.SetDefault("llm.embed_model", "text-embedding-3-small")
	v.SetDefault("llm.dimensions", 1536)
	v.SetDefault("conversation.chunks_to_use", 9)
	v.SetDefault("conversation.closeness_threshold", 0.35)
	v.SetDefault("conversation.citation_threshold_multiplier", 0.7)
	v.SetDefault("conversation.summarizer_pool_size", 10)
	v.SetDefault("conversation.fresh_start_staleness", 48*time.Hour)
	v.SetDefault("conversation.announcement_window", 48*time.Hour)
	v.SetDefault("conversation.scrape_pause", time.Second)
}
