package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaultsToLongpoll(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: " Polling "}}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
}

func TestNormalizeRequiresToken(t *testing.T) {
	assert.Error(t, Normalize(&Config{}))
	assert.Error(t, Normalize(nil))
}

func TestNormalizeWebhook(t *testing.T) {
	cfg := &Config{
		Telegram: TelegramConfig{Token: "t", RunMode: "webhook"},
		Webhook:  WebhookConfig{URL: "https://example.org/hook", Listen: "0.0.0.0", Port: 8443, SecretToken: "abc_DEF-123"},
	}
	require.NoError(t, Normalize(cfg))

	cfg.Webhook.SecretToken = "has space"
	assert.Error(t, Normalize(cfg))

	cfg.Webhook.SecretToken = strings.Repeat("a", 257)
	assert.Error(t, Normalize(cfg))

	cfg.Webhook.SecretToken = ""
	cfg.Webhook.Port = 0
	assert.Error(t, Normalize(cfg))
}

func TestNormalizeRateLimitExcludes(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "t"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback ", ""}},
	}
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, UpdateCallback, cfg.RateLimit.ExcludeUpdates[0])

	cfg.RateLimit.ExcludeUpdates = []string{"poll"}
	assert.Error(t, Normalize(cfg))
}

func TestLoadOverlaysEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram:\n  token: from-file\n  admin_id: 5\n"), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, int64(5), cfg.Telegram.AdminID)
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNormalizeRejectsNegativeSender(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t"}, Sender: SenderConfig{Workers: 2, MaxRetries: -1}}
	assert.Error(t, Normalize(cfg))

	cfg.Sender.MaxRetries = 3
	assert.NoError(t, Normalize(cfg))
}

func TestLoadReadsSenderSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "telegram:\n  token: t\nsender:\n  workers: 2\n  retry_backoff_ms: 500\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("SENDER_QUEUE_SIZE", "64")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, SenderConfig{Workers: 2, QueueSize: 64, RetryBackoffMS: 500}, cfg.Sender)
}
