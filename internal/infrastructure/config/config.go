package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	BotToken string `env:"BOT_TOKEN"`
	Env      string `env:"ENV,         default=development"`
	LogLevel string `env:"LOG_LEVEL,   default=info"`
	OpsPort  string `env:"OPS_PORT,    default=8080"`
	Workers  int    `env:"BOT_WORKERS, default=4"`

	Mongo MongoConfig
	Redis RedisConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=fleetbot"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

// Load reads configuration from environment variables using go-envconfig.
// A .env file in the working directory is honored for local development.
// The bot cannot run without a token, so a missing BOT_TOKEN is an error.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if cfg.BotToken == "" {
		return nil, errors.New("BOT_TOKEN is required")
	}
	return &cfg, nil
}
