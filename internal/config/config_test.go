package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/feedbot/core/config"
	coredatabase "github.com/m3rciful/feedbot/core/database"
	"github.com/m3rciful/feedbot/internal/feedback"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: secret
  admin_id: 99
database:
  driver: sqlite
  path: /tmp/feedback.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Telegram.Token)
	assert.Equal(t, int64(99), cfg.CoreConfig().Telegram.AdminID)
	assert.Equal(t, coreconfig.RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, StoreMemory, cfg.Conversation.Store)
	assert.Equal(t, 24*time.Hour, cfg.Conversation.IdleTTL)
	assert.Equal(t, 1, cfg.Database.MaxConnections)
	assert.Equal(t, feedback.DefaultTexts(), cfg.Texts)
}

func TestLoadTextOverridesKeepOtherDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: secret
database:
  driver: sqlite
  path: ./f.db
texts:
  greeting: "Hello there"
  final:
    high: ["Great!"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	def := feedback.DefaultTexts()
	assert.Equal(t, "Hello there", cfg.Texts.Greeting)
	assert.Equal(t, []string{"Great!"}, cfg.Texts.Final.High)
	assert.Equal(t, def.Final.Low, cfg.Texts.Final.Low)
	assert.Equal(t, def.AskUsefulness, cfg.Texts.AskUsefulness)
}

func TestLoadRejectsBrokenTexts(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: secret
database:
  driver: sqlite
  path: ./f.db
texts:
  save_error: "no code here"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeConversationStore(t *testing.T) {
	base := func() *Config {
		return &Config{
			Config:   coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "t"}},
			Database: coredatabaseSQLite(),
			Texts:    feedback.DefaultTexts(),
		}
	}

	cfg := base()
	cfg.Conversation.Store = "Redis"
	assert.Error(t, cfg.Normalize())

	cfg = base()
	cfg.Conversation = ConversationConfig{Store: "redis", RedisURL: "redis://localhost:6379/0", IdleTTL: time.Minute}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, StoreRedis, cfg.Conversation.Store)
	assert.Equal(t, time.Minute, cfg.Conversation.IdleTTL)

	cfg = base()
	cfg.Conversation.Store = "etcd"
	assert.Error(t, cfg.Normalize())

	cfg = base()
	cfg.Conversation.IdleTTL = -time.Second
	assert.Error(t, cfg.Normalize())
}

func TestLoadEnvOverridesStore(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: secret
database:
  driver: sqlite
  path: ./f.db
`)
	t.Setenv("CONVERSATION_STORE", "redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.Conversation.Store)
	assert.Equal(t, "redis://cache:6379/1", cfg.Conversation.RedisURL)
}

func coredatabaseSQLite() coredatabase.Config {
	return coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: "f.db"}
}
