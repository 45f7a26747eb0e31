package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/calebreed/parley/internal/chat"
	"github.com/calebreed/parley/internal/resilience"
	"github.com/calebreed/parley/internal/tools"
)

type APIConfig struct {
	Key            string `mapstructure:"key"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type ChatConfig struct {
	Model     string `mapstructure:"model"`
	MaxRounds int    `mapstructure:"max_rounds"`
}

type ProfilesConfig struct {
	Dir string `mapstructure:"dir"`
}

type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	BaseDelayMS int `mapstructure:"base_delay_ms"`
	MaxDelayMS  int `mapstructure:"max_delay_ms"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type Config struct {
	API      APIConfig                         `mapstructure:"api"`
	Chat     ChatConfig                        `mapstructure:"chat"`
	Profiles ProfilesConfig                    `mapstructure:"profiles"`
	Retry    RetryConfig                       `mapstructure:"retry"`
	Server   ServerConfig                      `mapstructure:"server"`
	Storage  StorageConfig                     `mapstructure:"storage"`
	Tools    map[string]tools.ToolServerConfig `mapstructure:"tools"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("parley")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.parley")

	home := os.Getenv("HOME")
	v.SetDefault("api.key", "${OPENAI_API_KEY}")
	v.SetDefault("chat.model", "gpt-3.5-turbo-0613")
	v.SetDefault("chat.max_rounds", 8)
	v.SetDefault("profiles.dir", filepath.Join(home, ".parley", "profiles"))
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay_ms", 500)
	v.SetDefault("retry.max_delay_ms", 8000)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.db_path", filepath.Join(home, ".parley", "parley.db"))

	// A missing config file is fine; defaults plus OPENAI_API_KEY are a
	// complete configuration.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.API.Key = expandEnv(cfg.API.Key)

	return &cfg, nil
}

// expandEnv resolves ${VAR} references against the environment.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}

// ClientConfig maps the API section onto the completion client's config.
func (c *Config) ClientConfig() chat.Config {
	return chat.Config{
		APIKey:  c.API.Key,
		BaseURL: c.API.BaseURL,
		Timeout: time.Duration(c.API.TimeoutSeconds) * time.Second,
	}
}

// RetryPolicy maps the retry section onto the transport decorator's policy.
// MaxAttempts of one or less means no retrying.
func (c *Config) RetryPolicy() resilience.Policy {
	return resilience.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   time.Duration(c.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(c.Retry.MaxDelayMS) * time.Millisecond,
	}
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
