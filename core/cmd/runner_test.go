package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/feedbot/core/config"
	coretelegram "github.com/m3rciful/feedbot/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type app struct {
	started, stopped int
}

func (a *app) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{
		OnStart: func(context.Context, coretelegram.Runtime) error { a.started++; return nil },
		OnStop:  func(context.Context, coretelegram.Runtime) error { a.stopped++; return nil },
	}, nil
}

func TestRunWrapsLifecycleHooks(t *testing.T) {
	t.Setenv("FEEDBOT_CONFIG", "from-env.yaml")
	var (
		loaded   string
		shutdown int
	)
	a := &app{}
	err := Run(Options{
		ConfigEnvVar: "FEEDBOT_CONFIG",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loaded = path
			return carrier{cfg: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return a, nil },
		ShutdownLogger: func() error { shutdown++; return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "from-env.yaml", loaded)
	assert.Equal(t, 1, a.started)
	assert.Equal(t, 1, a.stopped)
	assert.Equal(t, 1, shutdown)
}

func TestRunFailures(t *testing.T) {
	t.Setenv(defaultConfigEnv, "")
	load := func(string) (ConfigCarrier, error) { return carrier{cfg: &coreconfig.Config{}}, nil }
	boot := func(ConfigCarrier) (TelegramApp, error) { return &app{}, nil }

	assert.Error(t, Run(Options{}))
	assert.Error(t, Run(Options{LoadConfig: load, Bootstrap: boot}), "no config path")

	err := Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        func(string) (ConfigCarrier, error) { return carrier{}, nil },
		Bootstrap:         boot,
	})
	assert.ErrorContains(t, err, "missing core configuration")

	bootErr := errors.New("db down")
	err = Run(Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig:        load,
		Bootstrap:         func(ConfigCarrier) (TelegramApp, error) { return nil, bootErr },
	})
	assert.ErrorIs(t, err, bootErr)
}
