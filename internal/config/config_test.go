package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/theorybot/internal/database"
	"github.com/example/theorybot/pkg/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Telegram.Timeout)
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Database.BatchInterval)
	assert.Equal(t, 100, cfg.Database.BatchSize)
	assert.Equal(t, 24*time.Hour, cfg.Database.SessionWindow)
	assert.Equal(t, 15, cfg.RateLimit.Burst)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.SweepInterval)
	assert.Equal(t, 3*time.Second, cfg.Quiz.QuestionDelay)
	assert.Equal(t, 30*time.Minute, cfg.Engine().SessionIdle)
	assert.Equal(t, 5*time.Minute, cfg.Quiz.SweepInterval)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Equal(t, database.DefaultConfig(), cfg.Store())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("DATABASE_POOL_MAX", "7")
	t.Setenv("QUIZ_QUESTION_DELAY", "500ms")
	t.Setenv("RATELIMIT_RATE", "2.5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, 7, cfg.Database.PoolMax)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine().QuestionDelay)
	assert.Equal(t, 2.5, cfg.Limiter().Rate)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "theorybot.yaml")
	content := "database:\n  driver: postgres\n  dsn: postgres://localhost/theory\nquestions:\n  deutsch: \"\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, database.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/theory", cfg.Database.DSN)

	sources := cfg.Sources()
	require.Len(t, sources, 1)
	assert.Equal(t, models.LanguageEnglish, sources[0].Language)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingToken)
}
