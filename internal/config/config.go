// Package config содержит логику чтения конфигурации сервиса парковок.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultRunAddress     = "localhost:8080"
	defaultRequestTimeout = 10 * time.Second
	defaultRateLimit      = 100
	defaultLogLevel       = "info"
)

// Config содержит параметры конфигурации сервиса парковок.
type Config struct {
	RunAddress     string        `env:"RUN_ADDRESS"`
	DatabaseURI    string        `env:"DATABASE_URI"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
	RateLimit      int           `env:"RATE_LIMIT"`
	LogLevel       string        `env:"LOG_LEVEL"`
}

// Parse считывает конфигурацию из файла .env (если он есть), флагов командной строки
// и переменных окружения. Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var envCfg Config
	if err := env.Parse(&envCfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}
	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory storage if empty")
	flag.DurationVar(&cfg.RequestTimeout, "t", defaultRequestTimeout, "request processing timeout")
	flag.IntVar(&cfg.RateLimit, "l", defaultRateLimit, "requests per minute per client IP, 0 disables the limit")
	flag.StringVar(&cfg.LogLevel, "v", defaultLogLevel, "log level")

	flag.Parse()

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.RequestTimeout != 0 {
		cfg.RequestTimeout = envCfg.RequestTimeout
	}
	if envCfg.RateLimit != 0 {
		cfg.RateLimit = envCfg.RateLimit
	}
	if envCfg.LogLevel != "" {
		cfg.LogLevel = envCfg.LogLevel
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit must not be negative: %d", cfg.RateLimit)
	}

	return cfg, nil
}
