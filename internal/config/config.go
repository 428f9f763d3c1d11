// Package config loads settings for the chat client and the development
// backend. Values come from, in increasing precedence: built-in defaults, an
// optional config file, a .env file, and the process environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ammar1510/gigchat/internal/logger"
)

var log = logger.New("config")

// ClientConfig configures cmd/gigchat
type ClientConfig struct {
	APIBaseURL       string `mapstructure:"api_base_url"`
	SocketURL        string `mapstructure:"socket_url"`
	Token            string `mapstructure:"token"`
	ProjectID        string `mapstructure:"project_id"`
	RequestTimeoutMS int    `mapstructure:"request_timeout_ms"`
	UploadTimeoutMS  int    `mapstructure:"upload_timeout_ms"`
	MaxRetries       int    `mapstructure:"max_retries"`

	// Derived
	RequestTimeout time.Duration
	UploadTimeout  time.Duration
}

// ServerConfig configures cmd/devserver
type ServerConfig struct {
	Port                    string   `mapstructure:"port"`
	Env                     string   `mapstructure:"env"`
	JWTSecret               string   `mapstructure:"jwt_secret"`
	DBType                  string   `mapstructure:"db_type"`
	DatabaseURL             string   `mapstructure:"database_url"`
	AllowedOrigins          []string `mapstructure:"allowed_origins"`
	SocketMessagesPerMinute int      `mapstructure:"socket_messages_per_minute"`
	Seed                    bool     `mapstructure:"seed"`
}

// LoadClient reads client settings. path may be empty.
func LoadClient(path string) (*ClientConfig, error) {
	v := newViper(path)
	v.SetDefault("api_base_url", "http://localhost:8080/api/v1")
	v.SetDefault("socket_url", "ws://localhost:8080/socket")
	v.SetDefault("request_timeout_ms", 30000)
	v.SetDefault("upload_timeout_ms", 300000)
	v.SetDefault("max_retries", 3)
	bindKeys(v, "api_base_url", "socket_url", "token", "project_id",
		"request_timeout_ms", "upload_timeout_ms", "max_retries")

	if err := readFile(v, path); err != nil {
		return nil, err
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding client config: %w", err)
	}

	if cfg.APIBaseURL == "" {
		return nil, errors.New("config: api_base_url is required")
	}
	if cfg.RequestTimeoutMS <= 0 {
		return nil, fmt.Errorf("config: request_timeout_ms must be positive, got %d", cfg.RequestTimeoutMS)
	}
	if cfg.UploadTimeoutMS <= 0 {
		return nil, fmt.Errorf("config: upload_timeout_ms must be positive, got %d", cfg.UploadTimeoutMS)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("config: max_retries must not be negative, got %d", cfg.MaxRetries)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutMS) * time.Millisecond
	cfg.UploadTimeout = time.Duration(cfg.UploadTimeoutMS) * time.Millisecond
	return &cfg, nil
}

// LoadServer reads development backend settings. path may be empty.
func LoadServer(path string) (*ServerConfig, error) {
	v := newViper(path)
	v.SetDefault("port", "8080")
	v.SetDefault("env", "development")
	v.SetDefault("db_type", "memory")
	v.SetDefault("allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("socket_messages_per_minute", 60)
	v.SetDefault("seed", false)
	bindKeys(v, "port", "env", "jwt_secret", "db_type", "database_url",
		"allowed_origins", "socket_messages_per_minute", "seed")

	if err := readFile(v, path); err != nil {
		return nil, err
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding server config: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("config: jwt_secret is required")
	}
	switch cfg.DBType {
	case "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("config: database_url is required for db_type=postgres")
		}
	default:
		return nil, fmt.Errorf("config: unsupported db_type %q", cfg.DBType)
	}
	if cfg.SocketMessagesPerMinute <= 0 {
		cfg.SocketMessagesPerMinute = 60
	}
	return &cfg, nil
}

func newViper(path string) *viper.Viper {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil {
		log.Debug(".env file not found, using environment variables")
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

// bindKeys maps each key to its upper-case environment variable so that
// Unmarshal sees environment values even without a config file.
func bindKeys(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		_ = v.BindEnv(key, strings.ToUpper(key))
	}
}

func readFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	log.Info("Loaded configuration from %s", v.ConfigFileUsed())
	return nil
}
