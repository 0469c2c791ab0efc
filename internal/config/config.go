// Package config provides configuration loading, defaults, and validation.
// Configuration is read from a YAML file with BOT_* environment variable
// overrides, then validated before any component starts serving.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration parameters for all components:
// logging, Telegram transport, storage, matching, routing, delivery, and the
// staff dashboard API.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Matcher   MatcherConfig   `mapstructure:"matcher"`
	Router    RouterConfig    `mapstructure:"router"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Bot       BotConfig       `mapstructure:"bot"`
}

// LogConfig controls log verbosity and output format.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot transport settings.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// GeminiConfig holds the embedding model settings. An empty APIKey disables
// the semantic matching strategy; the matcher then runs lexical-only.
type GeminiConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"       validate:"required"`
	Timeout    time.Duration `mapstructure:"timeout"     validate:"min=1s,max=10m"`
	MaxRetries int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelay time.Duration `mapstructure:"retry_delay" validate:"min=100ms,max=1m"`
}

// MatcherConfig holds the acceptance thresholds for the two matching
// strategies. Lexical scores are on a 0-100 scale, semantic on 0-1.
type MatcherConfig struct {
	LexicalThreshold  int     `mapstructure:"lexical_threshold"  validate:"min=0,max=100"`
	SemanticThreshold float64 `mapstructure:"semantic_threshold" validate:"min=0,max=1"`
}

// RouterConfig holds the routing predicate deciding which unmatched questions
// are escalated to the staff queue. The pattern is a business rule and is kept
// external so it can change without a rebuild.
type RouterConfig struct {
	Pattern string `mapstructure:"pattern" validate:"required"`
}

// DeliveryConfig controls the answer delivery loop. MaxAttempts bounds the
// retries of a failing send; 0 retries forever.
type DeliveryConfig struct {
	Interval    time.Duration `mapstructure:"interval"     validate:"min=1s,max=1h"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=0"`
}

// DashboardConfig holds the staff dashboard API listener settings.
type DashboardConfig struct {
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`
}

// BotConfig holds per-operation timeouts for inbound message handling, so a
// slow external dependency cannot stall the intake pipeline.
type BotConfig struct {
	RouteTimeout time.Duration `mapstructure:"route_timeout" validate:"min=1s,max=5m"`
	SendTimeout  time.Duration `mapstructure:"send_timeout"  validate:"min=1s,max=5m"`
}

// LoadConfig reads configuration from the given YAML file, applies BOT_*
// environment variable overrides and defaults, and validates the result.
// A missing config file is allowed; missing required values are not.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets have no defaults, so they must be bound explicitly for
	// environment-only deployments.
	_ = v.BindEnv("telegram.token")
	_ = v.BindEnv("gemini.api_key")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		// No config file: defaults + environment only.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := regexp.Compile(cfg.Router.Pattern); err != nil {
		return nil, fmt.Errorf("invalid router pattern %q: %w", cfg.Router.Pattern, err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)

	v.SetDefault("database.path", "storage.db")

	v.SetDefault("gemini.model", "gemini-embedding-001")
	v.SetDefault("gemini.timeout", 30*time.Second)
	v.SetDefault("gemini.max_retries", 2)
	v.SetDefault("gemini.retry_delay", 2*time.Second)

	v.SetDefault("matcher.lexical_threshold", 80)
	v.SetDefault("matcher.semantic_threshold", 0.75)

	v.SetDefault("router.pattern", `(?i)\bPO\w{8,}\b`)

	v.SetDefault("delivery.interval", 10*time.Second)
	v.SetDefault("delivery.max_attempts", 10)

	v.SetDefault("dashboard.listen_addr", ":8090")

	v.SetDefault("bot.route_timeout", 15*time.Second)
	v.SetDefault("bot.send_timeout", 10*time.Second)
}
