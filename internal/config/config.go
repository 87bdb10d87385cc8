package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"shellgame-backend/internal/models"
)

// Config is consumed, not owned, by the core: ledger endpoint, contract id,
// timeouts, retry budgets and the shuffle-speed mapping are all supplied here.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"8080"`

	RedisURL  string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	LedgerNodeURL string `env:"LEDGER_NODE_URL" envDefault:"https://voi-testnet.algorand.network"`
	GameAppID     uint64 `env:"GAME_APP_ID" envDefault:"12345"`
	ExplorerURL   string `env:"EXPLORER_URL" envDefault:"https://voi-explorer.com/tx/"`

	ConfirmationTimeout      time.Duration `env:"CONFIRMATION_TIMEOUT" envDefault:"45s"`
	ConfirmationPollInterval time.Duration `env:"CONFIRMATION_POLL_INTERVAL" envDefault:"2s"`
	ResultRetryBudget        int           `env:"RESULT_RETRY_BUDGET" envDefault:"5"`
	ResultRetryInterval      time.Duration `env:"RESULT_RETRY_INTERVAL" envDefault:"2s"`

	BalanceRefreshInterval time.Duration `env:"BALANCE_REFRESH_INTERVAL" envDefault:"15s"`

	ShuffleWindowNormal  time.Duration `env:"SHUFFLE_WINDOW_NORMAL" envDefault:"6s"`
	ShuffleWindowFast    time.Duration `env:"SHUFFLE_WINDOW_FAST" envDefault:"4s"`
	ShuffleWindowExtreme time.Duration `env:"SHUFFLE_WINDOW_EXTREME" envDefault:"2500ms"`

	KeystorePath    string `env:"KEYSTORE_PATH" envDefault:"data/wallet.key"`
	RemoteSignerURL string `env:"REMOTE_SIGNER_URL" envDefault:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// ShuffleWindows returns the speed-tier to animation-window mapping.
func (c *Config) ShuffleWindows() map[models.SpeedTier]time.Duration {
	return map[models.SpeedTier]time.Duration{
		models.SpeedNormal:  c.ShuffleWindowNormal,
		models.SpeedFast:    c.ShuffleWindowFast,
		models.SpeedExtreme: c.ShuffleWindowExtreme,
	}
}
