package bootstrap

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/feedbot/core/config"
	coredatabase "github.com/m3rciful/feedbot/core/database"
)

func TestRunOrder(t *testing.T) {
	var steps []string
	src := fstest.MapFS{"0001_init.up.sql": {Data: []byte("SELECT 1;")}}
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: "x.db"},
		Migrations: src,
		LoggerInit: func(*coreconfig.Config) error { steps = append(steps, "logger"); return nil },
		Migrate: func(_ coredatabase.Config, got fs.FS) error {
			steps = append(steps, "migrate")
			assert.Equal(t, src, got)
			return nil
		},
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			steps = append(steps, "connect")
			return &sqlx.DB{}, nil
		},
	})
	require.NoError(t, err)
	assert.NotNil(t, res.DB)
	assert.Equal(t, []string{"logger", "migrate", "connect"}, steps)
}

func TestRunStopsOnFailure(t *testing.T) {
	connected := false
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Migrations: fstest.MapFS{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Migrate:    func(coredatabase.Config, fs.FS) error { return errors.New("dirty") },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	assert.ErrorContains(t, err, "migrations failed")
	assert.False(t, connected)

	_, err = Run(Options{})
	assert.Error(t, err)
}
