// /internal/config/config.go
package config

import (
	"fmt"
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
)

type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`
	DatabaseURL  string `env:"DATABASE_URL,required"`

	// StorageBackend selects where sound media lives: "filesystem" or "s3".
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"filesystem"`
	MediaRoot      string `env:"MEDIA_ROOT" envDefault:"media"`

	S3Bucket    string `env:"S3_BUCKET" envDefault:"join-sound-johnson"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-2"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
	S3UseSSL    bool   `env:"S3_USE_SSL" envDefault:"false"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

func New() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	switch cfg.StorageBackend {
	case BackendFilesystem:
	case BackendS3:
		if cfg.S3Endpoint == "" || cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			return nil, fmt.Errorf("s3 backend selected but S3_ENDPOINT, S3_ACCESS_KEY or S3_SECRET_KEY is not set")
		}
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	return &cfg, nil
}
