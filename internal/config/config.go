package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"marathon-trainer/internal/store"
)

type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	State    StateConfig    `yaml:"state"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type LLMConfig struct {
	Provider     string `yaml:"provider"` // "gemini", "groq", or "" for local-only
	GeminiAPIKey string `yaml:"gemini_api_key"`
	GroqAPIKey   string `yaml:"groq_api_key"`
	Model        string `yaml:"model"`
}

type StateConfig struct {
	Path string `yaml:"path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // sqlite file
}

type TelegramConfig struct {
	Token          string  `yaml:"token"`
	AllowedUserIDs []int64 `yaml:"allowed_user_ids"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides. A missing file is fine; everything has a usable default and
// the keys can come entirely from the environment. Env vars use the prefix
// TRAINER_ and underscore-separated paths:
//
//	TRAINER_LLM_PROVIDER, TRAINER_GEMINI_API_KEY, TRAINER_GROQ_API_KEY,
//	TRAINER_LLM_MODEL, TRAINER_STATE_PATH, TRAINER_METRICS_ENABLED,
//	TRAINER_METRICS_PATH, TRAINER_TELEGRAM_TOKEN, TRAINER_TELEGRAM_USER_IDS
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRAINER_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("TRAINER_GEMINI_API_KEY"); v != "" {
		cfg.LLM.GeminiAPIKey = v
	}
	if v := os.Getenv("TRAINER_GROQ_API_KEY"); v != "" {
		cfg.LLM.GroqAPIKey = v
	}
	if v := os.Getenv("TRAINER_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("TRAINER_STATE_PATH"); v != "" {
		cfg.State.Path = v
	}
	if v := os.Getenv("TRAINER_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
	if v := os.Getenv("TRAINER_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
	if v := os.Getenv("TRAINER_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TRAINER_TELEGRAM_USER_IDS"); v != "" {
		var ids []int64
		for _, part := range strings.Split(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err == nil {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			cfg.Telegram.AllowedUserIDs = ids
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.State.Path == "" {
		cfg.State.Path = store.DefaultPath()
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath()
	}
	if cfg.LLM.Provider == "" {
		// Infer from whichever key is configured.
		switch {
		case cfg.LLM.GeminiAPIKey != "":
			cfg.LLM.Provider = "gemini"
		case cfg.LLM.GroqAPIKey != "":
			cfg.LLM.Provider = "groq"
		}
	}
}

func defaultMetricsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "marathon-trainer-metrics.db"
	}
	return home + "/.marathon-trainer/metrics.db"
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "", "gemini", "groq":
	default:
		return fmt.Errorf("llm.provider must be 'gemini' or 'groq', got %q", c.LLM.Provider)
	}
	if c.LLM.Provider == "gemini" && c.LLM.GeminiAPIKey == "" {
		return fmt.Errorf("llm.gemini_api_key is required for provider gemini")
	}
	if c.LLM.Provider == "groq" && c.LLM.GroqAPIKey == "" {
		return fmt.Errorf("llm.groq_api_key is required for provider groq")
	}
	if c.Telegram.Token != "" && len(c.Telegram.AllowedUserIDs) == 0 {
		return fmt.Errorf("telegram.allowed_user_ids is required when a bot token is set")
	}
	return nil
}
