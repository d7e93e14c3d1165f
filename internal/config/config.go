package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	Server   Server   `yaml:"server"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	GitHub   GitHub   `yaml:"github"`
	OpenAI   OpenAI   `yaml:"openai"`
	Crypto   Crypto   `yaml:"crypto"`
	Retry    Retry    `yaml:"retry"`
}

type Server struct {
	Host        string        `yaml:"host" env-default:"localhost"`
	Port        string        `yaml:"port" env:"SERVER_PORT" env-default:"8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"5s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Postgres struct {
	Username        string        `env:"POSTGRES_USER" env-required:"true"`
	Password        string        `env:"POSTGRES_PASSWORD" env-required:"true"`
	Host            string        `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port            string        `env:"POSTGRES_PORT" env-default:"5432"`
	Database        string        `env:"POSTGRES_DB" env-required:"true"`
	MaxOpenConns    int           `yaml:"max_open_conns" env-default:"50"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env-default:"10"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env-default:"5m"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" env-default:"1m"`
}

type Redis struct {
	Addr          string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password      string `env:"REDIS_PASSWORD"`
	DB            int    `yaml:"db" env-default:"0"`
	QueueKey      string `yaml:"queue_key" env-default:"ingest:events"`
	DeadLetterKey string `yaml:"dead_letter_key" env-default:"ingest:events:dead"`
}

type GitHub struct {
	AppID          int64  `yaml:"app_id" env:"GITHUB_APP_ID"`
	PrivateKeyPath string `yaml:"private_key_path" env:"GITHUB_PRIVATE_KEY_PATH"`
	Token          string `env:"GITHUB_TOKEN"`
	WebhookSecret  string `env:"GITHUB_WEBHOOK_SECRET"`
	BaseURL        string `yaml:"base_url"`
}

type OpenAI struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	Model   string `yaml:"model" env-default:"gpt-4o-mini"`
	Enabled bool   `yaml:"enabled" env-default:"true"`
}

type Crypto struct {
	// Key is the base64-encoded 32-byte AES key. Encryption at rest is
	// disabled when the key is empty.
	Key string `env:"ENCRYPTION_KEY"`
}

type Retry struct {
	Workers     int             `yaml:"workers" env-default:"4"`
	MaxAttempts int             `yaml:"max_attempts" env-default:"5"`
	Delays      []time.Duration `yaml:"delays" env-default:"30s,2m,10m" env-separator:","`
}

func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		return nil, errors.New("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file does not exist: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	return &cfg, nil
}
