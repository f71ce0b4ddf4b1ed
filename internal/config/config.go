// Package config loads deskd's JSON configuration with environment
// overrides for secrets.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Duration is a time.Duration that accepts both "5m" strings and raw
// nanosecond numbers in JSON.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*d = Duration(time.Duration(val))
		return nil
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", val, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("duration must be a string or number, got %T", v)
	}
}

type Config struct {
	DBPath string `json:"db_path"`

	Gmail    GmailConfig    `json:"gmail"`
	Gemini   GeminiConfig   `json:"gemini"`
	Slack    SlackConfig    `json:"slack"`
	Pipeline PipelineConfig `json:"pipeline"`
	Drafts   DraftConfig    `json:"drafts"`
	Server   ServerConfig   `json:"server"`

	Verbose bool `json:"verbose"`
}

type GmailConfig struct {
	CredentialsPath string   `json:"credentials_path"`
	Query           string   `json:"query"`
	MaxResults      int64    `json:"max_results"`
	PollInterval    Duration `json:"poll_interval"`
}

type GeminiConfig struct {
	APIKey  string   `json:"api_key"`
	Model   string   `json:"model"`
	Timeout Duration `json:"timeout"`
}

type SlackConfig struct {
	WebhookURL    string   `json:"webhook_url"`
	Timeout       Duration `json:"timeout"`
	RetryAttempts int      `json:"retry_attempts"`
}

type PipelineConfig struct {
	Workers          int      `json:"workers"`
	RetryAttempts    int      `json:"retry_attempts"`
	RetryBaseDelay   Duration `json:"retry_base_delay"`
	BreakerThreshold int      `json:"breaker_threshold"`
	BreakerCooldown  Duration `json:"breaker_cooldown"`
	EscalationSweep  Duration `json:"escalation_sweep"`
}

type DraftConfig struct {
	MaxAge Duration `json:"max_age"`
}

type ServerConfig struct {
	Addr string `json:"addr"`
}

// Default returns a config with working defaults for everything that
// has one. Secrets and paths still need to be supplied.
func Default() *Config {
	return &Config{
		Gmail: GmailConfig{
			Query:        "is:unread in:inbox",
			MaxResults:   50,
			PollInterval: Duration(5 * time.Minute),
		},
		Gemini: GeminiConfig{
			Model:   "gemini-2.5-flash",
			Timeout: Duration(30 * time.Second),
		},
		Slack: SlackConfig{
			Timeout:       Duration(10 * time.Second),
			RetryAttempts: 3,
		},
		Pipeline: PipelineConfig{
			Workers:          4,
			RetryAttempts:    3,
			RetryBaseDelay:   Duration(time.Minute),
			BreakerThreshold: 5,
			BreakerCooldown:  Duration(time.Minute),
			EscalationSweep:  Duration(10 * time.Minute),
		},
		Drafts: DraftConfig{
			MaxAge: Duration(7 * 24 * time.Hour),
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads a JSON config file over the defaults and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets secrets and deployment specifics come from the
// environment instead of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("DESKD_DB"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("DESKD_GMAIL_CREDENTIALS"); v != "" {
		c.Gmail.CredentialsPath = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv("DESKD_SLACK_WEBHOOK"); v != "" {
		c.Slack.WebhookURL = v
	}
	if v := os.Getenv("DESKD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Pipeline.Workers = n
		}
	}
	if v := os.Getenv("DESKD_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Validate checks the parts that have no usable default.
func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("gemini api key is required (config gemini.api_key or GEMINI_API_KEY)")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}
	if c.Gmail.PollInterval.Std() < time.Second {
		return fmt.Errorf("gmail.poll_interval must be at least 1s")
	}
	return nil
}
