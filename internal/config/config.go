// Package config loads the feedback bot configuration: the reusable core
// settings plus database, conversation store and user-facing texts.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/feedbot/core/config"
	coredatabase "github.com/m3rciful/feedbot/core/database"
	"github.com/m3rciful/feedbot/internal/feedback"
)

const (
	// StoreMemory keeps conversations in process memory.
	StoreMemory = "memory"
	// StoreRedis keeps conversations in Redis.
	StoreRedis = "redis"
)

// ConversationConfig selects where per-user conversation state lives.
type ConversationConfig struct {
	Store    string `yaml:"store" envconfig:"CONVERSATION_STORE"`
	RedisURL string `yaml:"redis_url" envconfig:"REDIS_URL"`
	// RedisPrefix namespaces keys when several bots share one Redis.
	RedisPrefix string        `yaml:"redis_prefix" envconfig:"REDIS_PREFIX"`
	IdleTTL     time.Duration `yaml:"idle_ttl" envconfig:"CONVERSATION_IDLE_TTL"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database     coredatabase.Config `yaml:"database"`
	Conversation ConversationConfig  `yaml:"conversation"`
	Texts        feedback.Texts      `yaml:"texts"`
}

// CoreConfig exposes the embedded core configuration to the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads the YAML file at path, overlays environment variables and
// validates the result. Text keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{Texts: feedback.DefaultTexts()}
	if err := coreconfig.Decode(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize validates every section and applies defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}

	conv := &c.Conversation
	conv.Store = strings.ToLower(strings.TrimSpace(conv.Store))
	switch conv.Store {
	case "":
		conv.Store = StoreMemory
	case StoreMemory:
	case StoreRedis:
		if strings.TrimSpace(conv.RedisURL) == "" {
			return fmt.Errorf("conversation.redis_url is required when conversation.store is 'redis'")
		}
	default:
		return fmt.Errorf("invalid conversation.store %q; allowed: memory, redis", conv.Store)
	}
	if conv.IdleTTL < 0 {
		return fmt.Errorf("conversation.idle_ttl must be >= 0")
	}
	if conv.IdleTTL == 0 {
		conv.IdleTTL = 24 * time.Hour
	}
	return c.Texts.Validate()
}
