package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  DatabaseConfig
	Scheduler SchedulerConfig
	Robolly   RobollyConfig
	S3        S3Config
	Forward   ForwardConfig
	OpsDBPath string
	LogLevel  string
	Sources   map[string]*SourceConfig
}

type DatabaseConfig struct {
	URL string
}

type SchedulerConfig struct {
	Cron     string
	Timezone string
	Interval time.Duration
}

// RobollyConfig configures the external rendering service.
type RobollyConfig struct {
	APIKey         string
	RequestDelay   time.Duration
	RequestTimeout time.Duration
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// ForwardConfig is the best-effort downstream ingestion endpoint scheduled
// posts are mirrored to.
type ForwardConfig struct {
	URL string
}

// SourceConfig describes one inventory source (a dealer feed or site).
type SourceConfig struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Handler     string            `yaml:"handler"` // api, page, browser
	BaseURL     string            `yaml:"base_url"`
	APIKey      string            `yaml:"api_key"`
	PageSize    int               `yaml:"page_size"`
	MaxRetries  int               `yaml:"max_retries"`
	RateLimitMS int               `yaml:"rate_limit_ms"`
	Endpoints   map[string]string `yaml:"endpoints"`
	Selectors   map[string]string `yaml:"selectors"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Scheduler: SchedulerConfig{
			Cron:     getEnv("RUN_CRON", "0 6 * * *"),
			Timezone: getEnv("RUN_TIMEZONE", "Europe/Copenhagen"),
		},
		Robolly: RobollyConfig{
			APIKey:         os.Getenv("ROBOLLY_API_KEY"),
			RequestDelay:   time.Duration(getEnvInt("ROBOLLY_DELAY_MS", 333)) * time.Millisecond,
			RequestTimeout: time.Duration(getEnvInt("ROBOLLY_TIMEOUT_SEC", 30)) * time.Second,
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "eu-central-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Forward: ForwardConfig{
			URL: os.Getenv("FORWARD_URL"),
		},
		OpsDBPath: getEnv("OPS_DB_PATH", "engine.db"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		Sources:   make(map[string]*SourceConfig),
	}

	if interval := os.Getenv("RUN_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSourceConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSourceConfigs() error {
	configDir := "config/sources"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var source SourceConfig
		if err := yaml.Unmarshal(data, &source); err != nil {
			return err
		}
		if source.PageSize <= 0 {
			source.PageSize = 100
		}
		if source.MaxRetries <= 0 {
			source.MaxRetries = 3
		}

		c.Sources[source.ID] = &source
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
