package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage and backup driver names.
const (
	StorageDriverFile  = "file"
	StorageDriverMongo = "mongo"

	BackupDriverLocal = "local"
	BackupDriverS3    = "s3"
	BackupDriverNone  = "none"
)

// Config holds all configuration for the engine.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Backup   BackupConfig   `mapstructure:"backup"`
	S3       S3Config       `mapstructure:"s3"`
	Events   EventsConfig   `mapstructure:"events"`
	Legacy   LegacyConfig   `mapstructure:"legacy"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Log      LogConfig      `mapstructure:"log"`
}

type StorageConfig struct {
	Driver  string `mapstructure:"driver"`
	DataDir string `mapstructure:"data_dir"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type BackupConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	// Prefix is prepended to every snapshot key.
	Prefix string `mapstructure:"prefix"`
}

// EventsConfig bounds the per-user event logs.
type EventsConfig struct {
	Limit int `mapstructure:"limit"`
}

// LegacyConfig points at the directory holding pre-unification data.
type LegacyConfig struct {
	Dir string `mapstructure:"dir"`
}

type EngineConfig struct {
	// StaleSessionMaxAge is how long a session may stay active before
	// cleanup abandons it.
	StaleSessionMaxAge time.Duration `mapstructure:"stale_session_max_age"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	File     string `mapstructure:"file"`
	ToStdout bool   `mapstructure:"to_stdout"`
	JSON     bool   `mapstructure:"json"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// --- Environment Variable Handling ---
	// Nested keys map to upper snake case, e.g. storage.data_dir -> STORAGE_DATA_DIR
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	// --- Defaults ---
	v.SetDefault("storage.driver", StorageDriverFile)
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "workout_engine")
	v.SetDefault("backup.driver", BackupDriverLocal)
	v.SetDefault("backup.dir", "./backups")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.prefix", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("events.limit", 1000)
	v.SetDefault("legacy.dir", "./data")
	v.SetDefault("engine.stale_session_max_age", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.to_stdout", true)
	v.SetDefault("log.json", false)

	// --- Read Config File ---
	// A missing file is fine; defaults and env vars still apply.
	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		err = nil
	} else if err != nil {
		return
	}

	// --- Unmarshal Config ---
	if err = v.Unmarshal(&config); err != nil {
		return
	}

	if err = config.Validate(); err != nil {
		return
	}
	return config, nil
}

// Validate checks driver names and the settings each driver needs.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverFile:
		if c.Storage.DataDir == "" {
			return errors.New("storage.data_dir is required for the file driver")
		}
	case StorageDriverMongo:
		if c.Database.URI == "" || c.Database.Name == "" {
			return errors.New("database.uri and database.name are required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	switch c.Backup.Driver {
	case BackupDriverNone:
	case BackupDriverLocal:
		if c.Backup.Dir == "" {
			return errors.New("backup.dir is required for the local backup driver")
		}
	case BackupDriverS3:
		if c.S3.BucketName == "" {
			return errors.New("s3.bucket_name is required for the s3 backup driver")
		}
	default:
		return fmt.Errorf("unknown backup.driver %q", c.Backup.Driver)
	}

	if c.Events.Limit <= 0 {
		return fmt.Errorf("events.limit must be positive, got %d", c.Events.Limit)
	}
	if c.Engine.StaleSessionMaxAge <= 0 {
		return fmt.Errorf("engine.stale_session_max_age must be positive, got %s", c.Engine.StaleSessionMaxAge)
	}
	return nil
}
