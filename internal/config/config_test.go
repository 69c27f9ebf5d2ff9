package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	def := Default()
	assert.Equal(t, def.Seed, cfg.Seed)
	assert.Equal(t, def.Residents, cfg.Residents)
	assert.Equal(t, def.Cadence, cfg.Cadence)
	assert.Equal(t, def.Port, cfg.Port)
}

func TestLoadReadsYAML(t *testing.T) {
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("seed: 7\nresidents: 50\nport: 9000\ncadence:\n  market_every_ticks: 1\n  day_every_ticks: 30\n  macro_every_ticks: 900\n")
	require.NoError(t, os.WriteFile(path, body, 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 50, cfg.Residents)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, uint64(30), cfg.Cadence.DayEveryTicks)
	// Unspecified fields keep their defaults.
	assert.Equal(t, Default().BankReserves, cfg.BankReserves)
}

func TestLoadRejectsBadCadence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("cadence:\n  market_every_ticks: 7\n  day_every_ticks: 60\n  macro_every_ticks: 1800\n")
	require.NoError(t, os.WriteFile(path, body, 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7777")
	t.Setenv("ECONSIM_SEED", "99")
	t.Setenv("ECONSIM_STRICT", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Port)
	assert.Equal(t, int64(99), cfg.Seed)
	assert.True(t, cfg.Strict)
}
