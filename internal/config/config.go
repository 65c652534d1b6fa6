package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string        `env:"ADDR" envDefault:":8080"`
	DatabaseURL string        `env:"DATABASE_URL"`
	MaxSessions int           `env:"MAX_SESSIONS" envDefault:"256"`
	IdleGrace   time.Duration `env:"IDLE_GRACE" envDefault:"5m"`
	SweepEvery  time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	Debug       bool          `env:"DEBUG"`
}

// Load reads .env when present, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
