package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	DatabaseURL              string   `env:"DATABASE_URL"`
	AutoMigrate              bool     `env:"AUTO_MIGRATE"`
	DBMaxOpenConns           int      `env:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int      `env:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeSeconds int      `env:"DB_CONN_MAX_LIFETIME_SECONDS"`
	DBConnMaxIdleTimeSeconds int      `env:"DB_CONN_MAX_IDLE_SECONDS"`
	TokenMaxAttempts         int      `env:"TOKEN_MAX_ATTEMPTS"`
	CorrectGuessPoints       int      `env:"CORRECT_GUESS_POINTS"`
	ScoreLogLimit            int      `env:"SCORE_LOG_LIMIT"`
	FactPreviewLength        int      `env:"FACT_PREVIEW_LENGTH"`
	DefaultHostName          string   `env:"DEFAULT_HOST_NAME"`
	NATSURL                  string   `env:"NATS_URL"`
	NATSToken                string   `env:"NATS_TOKEN"`
	NATSSubjectPrefix        string   `env:"NATS_SUBJECT_PREFIX"`
	RateLimitPerMinute       int      `env:"RATE_LIMIT_PER_MINUTE"`
	CORSAllowedOrigins       []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	JoinBaseURL              string   `env:"JOIN_BASE_URL"`
	LogLevel                 string   `env:"LOG_LEVEL"`
	LogFormat                string   `env:"LOG_FORMAT"`
}

func Default() Config {
	return Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
		TokenMaxAttempts:         1000,
		CorrectGuessPoints:       3,
		ScoreLogLimit:            20,
		FactPreviewLength:        40,
		DefaultHostName:          "Host",
		NATSSubjectPrefix:        "guesswho",
		RateLimitPerMinute:       120,
		CORSAllowedOrigins:       []string{"http://localhost:5173"},
		LogLevel:                 "info",
		LogFormat:                "text",
	}
}

// Load overlays environment variables on top of Default. Unset variables keep
// their default value.
func Load() (Config, error) {
	cfg := Default()
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TokenMaxAttempts <= 0 {
		return cfg, fmt.Errorf("TOKEN_MAX_ATTEMPTS must be positive, got %d", cfg.TokenMaxAttempts)
	}
	if cfg.ScoreLogLimit <= 0 {
		cfg.ScoreLogLimit = Default().ScoreLogLimit
	}
	return cfg, nil
}
