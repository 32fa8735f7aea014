package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.NoError(t, err)
	assert.Equal(t, def(), cfg)
}

func TestLayering(t *testing.T) {
	path := writeJSON(t, `{"port":"9000","store":"sqlite","sqlitePath":"a.db","logLevel":"warn"}`)
	t.Setenv("GRAPHGUARD_PORT", "9100")
	t.Setenv("GRAPHGUARD_AUTO_MIGRATE", "yes")
	t.Setenv("GRAPHGUARD_METRICS_ENABLED", "no")

	cfg, err := Load(path, []string{"-sqlite", "b.db", "-log-format=json"})
	require.NoError(t, err)

	// env поверх файла, флаг поверх env
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "sqlite", cfg.Store)
	assert.Equal(t, "b.db", cfg.SQLitePath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.AutoMigrate)
	assert.False(t, cfg.MetricsEnabled)
}

func TestConfigFlagSwitchesFile(t *testing.T) {
	other := writeJSON(t, `{"dslDir":"schemas"}`)

	cfg, err := Load("nope.json", []string{"-port", "7000", "--config", other})
	require.NoError(t, err)
	assert.Equal(t, "schemas", cfg.DSLDir)
	assert.Equal(t, "7000", cfg.Port)
}

func TestInvalid(t *testing.T) {
	_, err := Load("", []string{"-store", "mongo"})
	assert.ErrorContains(t, err, `unknown store "mongo"`)

	_, err = Load("", []string{"-store", "postgres"})
	assert.ErrorContains(t, err, "requires dbUrl")

	_, err = Load(writeJSON(t, `{"port":`), nil)
	assert.Error(t, err)

	_, err = Load("", []string{"-unknown"})
	assert.Error(t, err)
}
