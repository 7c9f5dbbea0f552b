package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type SagaConfig struct {
	CompensationMaxAttempts int           `env:"COMPENSATION_MAX_ATTEMPTS" envDefault:"6"`
	CompensationBaseDelay   time.Duration `env:"COMPENSATION_BASE_DELAY" envDefault:"50ms"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"5m"`
	ReconcileGrace    time.Duration `env:"RECONCILE_GRACE" envDefault:"10m"`

	CatalogTTL time.Duration `env:"CATALOG_TTL" envDefault:"30s"`

	DefaultMinWithdraw        int64 `env:"DEFAULT_MIN_WITHDRAW" envDefault:"0"`
	DefaultWithdrawFeePercent int64 `env:"DEFAULT_WITHDRAW_FEE_PERCENT" envDefault:"0"`
	SignupBonus               int64 `env:"SIGNUP_BONUS" envDefault:"0"`
}

func LoadSaga() (SagaConfig, error) {
	var cfg SagaConfig
	err := env.Parse(&cfg)
	return cfg, err
}
