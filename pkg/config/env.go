package config

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Env holds secrets read from the process environment.
type Env struct {
	BotToken string `env:"BOT_TOKEN, required"`
}

// LoadEnv loads an optional .env file and then reads the environment.
// It fails when BOT_TOKEN is not set.
func LoadEnv(ctx context.Context, files ...string) (*Env, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env file")
	}
	env := &Env{}
	if err := envconfig.Process(ctx, env); err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}
	return env, nil
}
