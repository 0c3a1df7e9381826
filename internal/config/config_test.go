package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitforge/workout-engine/internal/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, config.StorageDriverFile, cfg.Storage.Driver)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, config.BackupDriverLocal, cfg.Backup.Driver)
	assert.Equal(t, 1000, cfg.Events.Limit)
	assert.Equal(t, 24*time.Hour, cfg.Engine.StaleSessionMaxAge)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.S3.UseSSL)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
storage:
  driver: mongo
database:
  uri: mongodb://db:27017
  name: workouts
backup:
  driver: s3
s3:
  bucket_name: backups
  prefix: engine/
engine:
  stale_session_max_age: 6h
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("EVENTS_LIMIT", "50")

	cfg, err := config.LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, config.StorageDriverMongo, cfg.Storage.Driver)
	assert.Equal(t, "workouts", cfg.Database.Name)
	assert.Equal(t, config.BackupDriverS3, cfg.Backup.Driver)
	assert.Equal(t, "backups", cfg.S3.BucketName)
	assert.Equal(t, "engine/", cfg.S3.Prefix)
	assert.Equal(t, 6*time.Hour, cfg.Engine.StaleSessionMaxAge)
	assert.Equal(t, 50, cfg.Events.Limit)
}

func TestConfig_Validate(t *testing.T) {
	valid := config.Config{
		Storage: config.StorageConfig{Driver: config.StorageDriverFile, DataDir: "data"},
		Backup:  config.BackupConfig{Driver: config.BackupDriverNone},
		Events:  config.EventsConfig{Limit: 10},
		Engine:  config.EngineConfig{StaleSessionMaxAge: time.Hour},
	}
	require.NoError(t, valid.Validate())

	testCases := []struct {
		name   string
		mutate func(c *config.Config)
	}{
		{"unknown storage driver", func(c *config.Config) { c.Storage.Driver = "sqlite" }},
		{"file driver without dir", func(c *config.Config) { c.Storage.DataDir = "" }},
		{"mongo driver without uri", func(c *config.Config) { c.Storage.Driver = config.StorageDriverMongo }},
		{"unknown backup driver", func(c *config.Config) { c.Backup.Driver = "ftp" }},
		{"s3 backup without bucket", func(c *config.Config) { c.Backup.Driver = config.BackupDriverS3 }},
		{"local backup without dir", func(c *config.Config) { c.Backup.Driver = config.BackupDriverLocal }},
		{"zero event limit", func(c *config.Config) { c.Events.Limit = 0 }},
		{"zero stale age", func(c *config.Config) { c.Engine.StaleSessionMaxAge = 0 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
