package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/factbot/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"FACTBOT_RUNTIME_PATH" envDefault:".factbot"`

	// Transport Flags
	EnableHTTP     bool   `env:"ENABLE_HTTP" envDefault:"true"`
	EnableTelegram bool   `env:"ENABLE_TELEGRAM" envDefault:"false"`
	HTTPAddr       string `env:"HTTP_ADDR" envDefault:":8080"`

	// Quota accounts live in sqlite or redis
	QuotaBackend string `env:"QUOTA_BACKEND" envDefault:"sqlite"`

	// Turn pipeline
	DefaultModel       string        `env:"DEFAULT_MODEL" envDefault:"meta-llama/llama-4-maverick"`
	ChatModelMarkers   []string      `env:"CHAT_MODEL_MARKERS" envSeparator:"," envDefault:"llama,gpt-oss,maverick"`
	DependencyAttempts int           `env:"DEPENDENCY_ATTEMPTS" envDefault:"2"`
	PlanCacheTTL       time.Duration `env:"PLAN_CACHE_TTL" envDefault:"1m"`
	DefaultTimezone    string        `env:"DEFAULT_TIMEZONE" envDefault:"UTC"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	c.RuntimePath = resolveRuntimePath(c.RuntimePath)
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

// GetSystemPath points at an optional system prompt override.
func (c AppConfig) GetSystemPath() string {
	return filepath.Join(c.RuntimePath, "SYSTEM.md")
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "factbot.db")
}

func (c AppConfig) GetEnvPath() string {
	return filepath.Join(c.RuntimePath, ".env")
}
