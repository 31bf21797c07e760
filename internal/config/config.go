package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"ENV"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`
	OpenAIAPIKey   string `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel    string `mapstructure:"OPENAI_MODEL"`
	TelegramToken  string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	ClinicChatID   int64  `mapstructure:"CLINIC_CHAT_ID"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("MIGRATIONS_PATH", "file://migrations")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("LOG_LEVEL", "info")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("MIGRATIONS_PATH")
	v.BindEnv("OPENAI_API_KEY")
	v.BindEnv("OPENAI_MODEL")
	v.BindEnv("TELEGRAM_BOT_TOKEN")
	v.BindEnv("CLINIC_CHAT_ID")
	v.BindEnv("LOG_LEVEL")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool { return c.Env == "development" }
