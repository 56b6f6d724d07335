package config

import (
	"io/ioutil"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration lets yaml carry values like "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config top-level struct
type Config struct {
	Terminal  TerminalConfig  `yaml:"terminal"`
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Sqlite    SqliteConfig    `yaml:"sqlite"`
	Redis     RedisConfig     `yaml:"redis"`
	Sync      SyncConfig      `yaml:"sync"`
	Upload    UploadConfig    `yaml:"upload"`
	Loader    LoaderConfig    `yaml:"loader"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	LogLevel  string          `yaml:"log_level"`
}

type TerminalConfig struct {
	ID string `yaml:"id"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type BackendConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

type SqliteConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SyncConfig struct {
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
}

type UploadConfig struct {
	RetryInterval        Duration `yaml:"retry_interval"`
	MaxPermanentAttempts int      `yaml:"max_permanent_attempts"`
}

type LoaderConfig struct {
	PageSize    int      `yaml:"page_size"`
	Collections []string `yaml:"collections"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// Load reads yaml file
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// override secrets / endpoints from env if present
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if url := os.Getenv("BACKEND_BASE_URL"); url != "" {
		cfg.Backend.BaseURL = url
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = Duration(30 * time.Second)
	}
	if c.Sync.HeartbeatInterval == 0 {
		c.Sync.HeartbeatInterval = Duration(30 * time.Second)
	}
	if c.Upload.RetryInterval == 0 {
		c.Upload.RetryInterval = Duration(5 * time.Minute)
	}
	if c.Upload.MaxPermanentAttempts == 0 {
		c.Upload.MaxPermanentAttempts = 5
	}
	if c.Loader.PageSize == 0 {
		c.Loader.PageSize = 200
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
