package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv string `env:"APP_ENV" default:"development"`
	Port   string `env:"PORT" default:"8080"`

	QodBaseURL      string `env:"QOD_BASE_URL"`
	OAuthTokenURL   string `env:"OAUTH_TOKEN_URL"`
	QodClientID     string `env:"QOD_CLIENT_ID"`
	QodClientSecret string `env:"QOD_CLIENT_SECRET"`

	DataDir string `env:"DATA_DIR" default:"data"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	ReconcileFastInterval time.Duration `env:"RECONCILE_FAST_INTERVAL" default:"2s"`
	ReconcileSlowInterval time.Duration `env:"RECONCILE_SLOW_INTERVAL" default:"60s"`

	QodRequestsPerSecond float64 `env:"QOD_REQUESTS_PER_SECOND" default:"10"`
	QodRequestBurst      int     `env:"QOD_REQUEST_BURST" default:"20"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"QOD_BASE_URL":      cfg.QodBaseURL,
		"OAUTH_TOKEN_URL":   cfg.OAuthTokenURL,
		"QOD_CLIENT_ID":     cfg.QodClientID,
		"QOD_CLIENT_SECRET": cfg.QodClientSecret,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	for name, raw := range map[string]string{"QOD_BASE_URL": cfg.QodBaseURL, "OAUTH_TOKEN_URL": cfg.OAuthTokenURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}

	if cfg.ReconcileFastInterval <= 0 || cfg.ReconcileSlowInterval <= 0 {
		return fmt.Errorf("reconcile intervals must be positive")
	}
	if cfg.ReconcileFastInterval > cfg.ReconcileSlowInterval {
		return fmt.Errorf("RECONCILE_FAST_INTERVAL must not exceed RECONCILE_SLOW_INTERVAL")
	}

	return nil
}
