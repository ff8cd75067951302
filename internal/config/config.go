package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	ServerURL         string        `mapstructure:"server_url"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	ReconnectAttempts uint64        `mapstructure:"reconnect_attempts"`
	DialTimeout       time.Duration `mapstructure:"dial_timeout"`
	ResumeWindow      time.Duration `mapstructure:"resume_window"`
	StateFile         string        `mapstructure:"state_file"`
	LogLevel          string        `mapstructure:"log_level"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server_url", "wss://pocket-scrum-bk.onrender.com/ws")
	v.SetDefault("reconnect_delay", "1s")
	v.SetDefault("reconnect_attempts", 5)
	v.SetDefault("dial_timeout", "20s")
	v.SetDefault("resume_window", "30m")
	v.SetDefault("state_file", "")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
