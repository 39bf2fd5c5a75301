package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"trailmark"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"trailmark"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	// Attempts before a message is handed to the dead-letter path. 0 means unlimited.
	NSQMaxAttempts         uint16 `envconfig:"NSQ_MAX_ATTEMPTS" default:"10"`
	NSQConnectAttempts     int    `envconfig:"NSQ_CONNECT_ATTEMPTS" default:"5"`
	NSQConnectDelaySeconds int    `envconfig:"NSQ_CONNECT_DELAY_SECONDS" default:"5"`
	EnrichChannel          string `envconfig:"ENRICH_CHANNEL" default:"enrich"`
	PersistChannel         string `envconfig:"PERSIST_CHANNEL" default:"persist"`

	EnableAPI           bool   `envconfig:"ENABLE_API" default:"true"`
	EnableEnrichWorker  bool   `envconfig:"ENABLE_ENRICH_WORKER" default:"true"`
	EnablePersistWorker bool   `envconfig:"ENABLE_PERSIST_WORKER" default:"true"`
	MigrationPath       string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Summarizer
	SummarizerProvider       string  `envconfig:"SUMMARIZER_PROVIDER" default:"gemini"`
	GeminiAPIKey             string  `envconfig:"GEMINI_API_KEY"`
	GeminiModel              string  `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	OpenAIAPIKey             string  `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL            string  `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	AIModel                  string  `envconfig:"AI_MODEL" default:"gpt-4o"`
	SummarizerTimeoutSeconds int     `envconfig:"SUMMARIZER_TIMEOUT_SECONDS" default:"60"`
	SummarizerRatePerSecond  float64 `envconfig:"SUMMARIZER_RATE_PER_SECOND" default:"2"`

	// Notification
	NotifyURL                string  `envconfig:"NOTIFY_URL"`
	NotifyMinDurationSeconds int     `envconfig:"NOTIFY_MIN_DURATION_SECONDS" default:"30"`
	NotifyMinScroll          float64 `envconfig:"NOTIFY_MIN_SCROLL" default:"0.3"`

	// Server
	ServerPort int `envconfig:"SERVER_PORT" default:"8081"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.NSQDHost == "" {
		return fmt.Errorf("%w: NSQD_HOST", ErrMissingRequired)
	}
	switch c.SummarizerProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown SUMMARIZER_PROVIDER %q", c.SummarizerProvider)
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.BootstrapRetryDelaySeconds) * time.Second
}

func (c *Config) ConnectDelay() time.Duration {
	return time.Duration(c.NSQConnectDelaySeconds) * time.Second
}

func (c *Config) SummarizerTimeout() time.Duration {
	return time.Duration(c.SummarizerTimeoutSeconds) * time.Second
}

func (c *Config) NotifyMinDuration() time.Duration {
	return time.Duration(c.NotifyMinDurationSeconds) * time.Second
}
