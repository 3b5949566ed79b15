package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_Commands(t *testing.T) {
	cmd := newRootCmd()

	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Name())

	create, _, err := cmd.Find([]string{"schema", "create"})
	require.NoError(t, err)
	assert.Equal(t, "create", create.Name())

	drop, _, err := cmd.Find([]string{"schema", "drop"})
	require.NoError(t, err)
	assert.Equal(t, "drop", drop.Name())
}

func TestLoadConfig_RequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	_, err := loadConfig(cmd)
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoadConfig_AddrFlag(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/pipeline")
	cmd := newRootCmd()
	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)
	require.NoError(t, serve.ParseFlags([]string{"--addr", ":9999"}))

	cfg, err := loadConfig(serve)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Address)
}
