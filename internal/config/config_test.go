package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/semlayer/internal/semantic"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "semlayer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "semantic", cfg.Definitions.Dir)
	assert.Equal(t, "generic", cfg.Model.Dialect)
	assert.Same(t, semantic.GenericDialect, cfg.Dialect())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 24*time.Hour, cfg.NLU.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.NLU.Timeout)
	assert.Equal(t, 512, cfg.NLU.MaxTokens)
	assert.Empty(t, cfg.Warehouse.Path)
	assert.Empty(t, cfg.Redis.Addr)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
definitions:
  dir: ./defs
model:
  dialect: sqlite
  base_table: campaign
warehouse:
  path: /tmp/wh.db
nlu:
  model: gpt-4o
  cache_ttl: 90m
server:
  addr: 127.0.0.1:9000
log:
  level: debug
  format: json
`)

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "./defs", cfg.Definitions.Dir)
	assert.Same(t, semantic.SQLiteDialect, cfg.Dialect())
	assert.Equal(t, "campaign", cfg.Model.BaseTable)
	assert.Equal(t, "/tmp/wh.db", cfg.Warehouse.Path)
	assert.Equal(t, "gpt-4o", cfg.NLU.Model)
	assert.Equal(t, 90*time.Minute, cfg.NLU.CacheTTL)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "model:\n  dialect: sqlite\n")
	t.Setenv("SEMLAYER_MODEL_DIALECT", "postgres")
	t.Setenv("SEMLAYER_REDIS_ADDR", "localhost:6379")

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Model.Dialect)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_APIKeyFallback(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback", cfg.NLU.APIKey)

	t.Setenv("SEMLAYER_NLU_API_KEY", "sk-primary")
	cfg, err = Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "sk-primary", cfg.NLU.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown dialect", "model:\n  dialect: oracle\n", `unknown dialect "oracle"`},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"negative ttl", "nlu:\n  cache_ttl: -1m\n", "nlu.cache_ttl"},
		{"malformed yaml", "model: [unclosed\n", "failed to read config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(New(), writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
