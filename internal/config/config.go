package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/0xPuncker/job-watcher/internal/errors"
	"github.com/joho/godotenv"
)

const DefaultPath = "config/config.json"

type Config struct {
	Server    ServerConfig    `json:"server"`
	API       APIConfig       `json:"api"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Search    SearchConfig    `json:"search"`
	Slack     SlackConfig     `json:"slack"`
}

type ServerConfig struct {
	Port         string `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

// APIConfig points at the job-search backend.
type APIConfig struct {
	BaseURL  string `json:"base_url"`
	Timeout  string `json:"timeout"`
	TokenEnv string `json:"token_env"`
}

type SchedulerConfig struct {
	PollInterval string `json:"poll_interval"`
	SettleDelay  string `json:"settle_delay"`
}

type SearchConfig struct {
	CacheTTL string `json:"cache_ttl"`
}

type SlackConfig struct {
	WebhookURL string `json:"webhook_url"`
}

// Load reads configPath. When the file is missing, settings come from the
// environment, optionally seeded from .env or .env.local.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if err := godotenv.Load(); err != nil {
			if err := godotenv.Load(".env.local"); err != nil {
				fmt.Printf("No .env or .env.local file found. Using environment variables.\n")
			}
		}
		cfg := FromEnv()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() *Config {
	def := DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", def.Server.Port),
			ReadTimeout:  getEnv("SERVER_READ_TIMEOUT", def.Server.ReadTimeout),
			WriteTimeout: getEnv("SERVER_WRITE_TIMEOUT", def.Server.WriteTimeout),
		},
		API: APIConfig{
			BaseURL:  getEnv("API_BASE_URL", def.API.BaseURL),
			Timeout:  getEnv("API_TIMEOUT", def.API.Timeout),
			TokenEnv: def.API.TokenEnv,
		},
		Scheduler: SchedulerConfig{
			PollInterval: getEnv("SCHEDULER_POLL_INTERVAL", def.Scheduler.PollInterval),
			SettleDelay:  getEnv("SCHEDULER_SETTLE_DELAY", def.Scheduler.SettleDelay),
		},
		Search: SearchConfig{
			CacheTTL: getEnv("SEARCH_CACHE_TTL", def.Search.CacheTTL),
		},
		Slack: SlackConfig{
			WebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		},
	}
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  "15s",
			WriteTimeout: "15s",
		},
		API: APIConfig{
			BaseURL:  "http://localhost:8000",
			Timeout:  "15s",
			TokenEnv: "API_TOKEN",
		},
		Scheduler: SchedulerConfig{
			PollInterval: "30s",
			SettleDelay:  "1s",
		},
		Search: SearchConfig{
			CacheTTL: "5m",
		},
	}
}

// Validate checks every duration setting parses and the poll interval is at least one second.
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"api.timeout":             c.API.Timeout,
		"scheduler.poll_interval": c.Scheduler.PollInterval,
		"scheduler.settle_delay":  c.Scheduler.SettleDelay,
		"search.cache_ttl":        c.Search.CacheTTL,
	} {
		if _, err := parseDuration(value); err != nil {
			return errors.Wrapf(err, "invalid %s", name)
		}
	}
	if interval, _ := parseDuration(c.Scheduler.PollInterval); interval != 0 && interval < time.Second {
		return errors.Newf("scheduler.poll_interval must be at least 1s, got %s", interval)
	}
	if c.API.BaseURL == "" {
		return errors.New("api.base_url must not be empty")
	}
	return nil
}

func (c *Config) APITimeout() time.Duration {
	return mustDuration(c.API.Timeout)
}

func (c *Config) PollInterval() time.Duration {
	return mustDuration(c.Scheduler.PollInterval)
}

func (c *Config) SettleDelay() time.Duration {
	return mustDuration(c.Scheduler.SettleDelay)
}

func (c *Config) CacheTTL() time.Duration {
	return mustDuration(c.Search.CacheTTL)
}

func (c *Config) ReadTimeout() time.Duration {
	return mustDuration(c.Server.ReadTimeout)
}

func (c *Config) WriteTimeout() time.Duration {
	return mustDuration(c.Server.WriteTimeout)
}

// parseDuration treats an empty value as zero, meaning "use the default".
func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.Newf("negative duration %q", value)
	}
	return d, nil
}

func mustDuration(value string) time.Duration {
	d, _ := parseDuration(value)
	return d
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
