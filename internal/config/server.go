package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type ServerConfig struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	AdminAPIKey string `env:"ADMIN_API_KEY"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"postgres"`
	PostgresDSN  string `env:"POSTGRES_DSN"`
	AutoMigrate  bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	NATSURL string `env:"NATS_URL"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return cfg, fmt.Errorf("POSTGRES_DSN is required for store backend %q", cfg.StoreBackend)
		}
	case BackendRedis, BackendMemory:
	default:
		return cfg, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	return cfg, nil
}
