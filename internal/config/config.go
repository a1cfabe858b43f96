package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"

	ObjectStoreMemory = "memory"
	ObjectStoreS3     = "s3"
	ObjectStoreMinio  = "minio"
)

type Config struct {
	Addr        string        `env:"PHOTOVAULT_ADDR" envDefault:":8080"`
	LogLevel    slog.Level    `env:"PHOTOVAULT_LOG_LEVEL" envDefault:"info"`
	JWTSecret   string        `env:"PHOTOVAULT_JWT_SECRET"`
	TokenTTL    time.Duration `env:"PHOTOVAULT_TOKEN_TTL" envDefault:"24h"`
	Debug       bool          `env:"PHOTOVAULT_DEBUG" envDefault:"false"`
	CORSOrigins []string      `env:"PHOTOVAULT_CORS_ORIGINS" envSeparator:","`

	DB          DBConfig          `envPrefix:"PHOTOVAULT_DB_"`
	ObjectStore ObjectStoreConfig `envPrefix:"PHOTOVAULT_OBJECTSTORE_"`
	S3          S3Config          `envPrefix:"PHOTOVAULT_S3_"`
	Photos      PhotosConfig      `envPrefix:"PHOTOVAULT_"`
}

type DBConfig struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	DSN    string `env:"DSN" envDefault:"data/photovault.db"`
}

type ObjectStoreConfig struct {
	Driver  string        `env:"DRIVER" envDefault:"memory"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// S3Config is shared by the s3 and minio object store drivers.
type S3Config struct {
	Endpoint  string `env:"ENDPOINT"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	Bucket    string `env:"BUCKET" envDefault:"media"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

type PhotosConfig struct {
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`
	ThumbnailSize  int   `env:"THUMBNAIL_SIZE" envDefault:"200"`
	PurgeWorkers   int   `env:"PURGE_WORKERS" envDefault:"4"`
	MaxImagePixels int64 `env:"MAX_IMAGE_PIXELS" envDefault:"89478485"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	cfg.ObjectStore.Driver = strings.ToLower(strings.TrimSpace(cfg.ObjectStore.Driver))
	cfg.CORSOrigins = trimAll(cfg.CORSOrigins)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("PHOTOVAULT_JWT_SECRET must be set")
	}

	switch c.DB.Driver {
	case DBDriverSQLite, DBDriverPostgres:
	default:
		return fmt.Errorf("unsupported PHOTOVAULT_DB_DRIVER %q", c.DB.Driver)
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		return fmt.Errorf("PHOTOVAULT_DB_DSN must be set")
	}

	switch c.ObjectStore.Driver {
	case ObjectStoreMemory:
	case ObjectStoreS3, ObjectStoreMinio:
		if c.S3.Bucket == "" {
			return fmt.Errorf("PHOTOVAULT_S3_BUCKET must be set for the %s driver", c.ObjectStore.Driver)
		}
		if c.ObjectStore.Driver == ObjectStoreMinio && c.S3.Endpoint == "" {
			return fmt.Errorf("PHOTOVAULT_S3_ENDPOINT must be set for the minio driver")
		}
	default:
		return fmt.Errorf("unsupported PHOTOVAULT_OBJECTSTORE_DRIVER %q", c.ObjectStore.Driver)
	}

	if c.ObjectStore.Timeout <= 0 {
		return fmt.Errorf("PHOTOVAULT_OBJECTSTORE_TIMEOUT must be positive")
	}
	if c.Photos.MaxUploadBytes <= 0 {
		return fmt.Errorf("PHOTOVAULT_MAX_UPLOAD_BYTES must be positive")
	}
	if c.Photos.ThumbnailSize <= 0 {
		return fmt.Errorf("PHOTOVAULT_THUMBNAIL_SIZE must be positive")
	}
	if c.Photos.PurgeWorkers <= 0 {
		return fmt.Errorf("PHOTOVAULT_PURGE_WORKERS must be positive")
	}
	if c.Photos.MaxImagePixels <= 0 {
		return fmt.Errorf("PHOTOVAULT_MAX_IMAGE_PIXELS must be positive")
	}

	return nil
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
