package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "")
	t.Setenv("CACHE_TTL", "")

	cfg := LoadConfig()
	assert.Equal(t, "sqlite", cfg.Db.Driver)
	assert.Equal(t, "rard.db", cfg.Db.DSN)
	assert.Equal(t, "@every 10m", cfg.SweepSchedule)
	assert.Equal(t, "rard.changes", cfg.Kafka.Topic)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, time.Minute, cfg.CheckInterval)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_DSN", "host=localhost dbname=rard")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("HTTP_PORT", "8080")

	cfg := LoadConfig()
	assert.Equal(t, "postgres", cfg.Db.Driver)
	assert.Equal(t, "host=localhost dbname=rard", cfg.Db.DSN)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, "8080", cfg.HTTPPort)
}

func TestOpenDb(t *testing.T) {
	cfg := &Config{Db: DbConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "rard.db")}}
	db, err := OpenDb(cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Ping())
	require.NoError(t, sqlDB.Close())

	_, err = OpenDb(&Config{Db: DbConfig{Driver: "mysql"}})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.GetLevel())

	SetupLogging(&Config{LogLevel: "debug"})
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	SetupLogging(&Config{LogLevel: "loud"})
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}
