package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type BotConfig struct {
	BaseURL      string        `env:"BOT_BASE_URL" envDefault:"http://localhost:8080"`
	JWTSecret    string        `env:"JWT_SECRET"`
	TournamentID string        `env:"BOT_TOURNAMENT_ID"`
	Users        int           `env:"BOT_USERS" envDefault:"20"`
	UserPrefix   string        `env:"BOT_USER_PREFIX" envDefault:"bot"`
	Timeout      time.Duration `env:"BOT_TIMEOUT" envDefault:"10s"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
