// Package config содержит логику чтения конфигурации BFF-сервиса E-mind.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultRunAddress       = "localhost:8080"
	defaultRequestTimeout   = 10 * time.Second
	defaultCarouselInterval = 5 * time.Second
)

// ErrMissingAPIBaseURL возвращается, если не задан адрес API.
var ErrMissingAPIBaseURL = errors.New("API_BASE_URL (-b) is required")

// Config содержит параметры конфигурации BFF.
type Config struct {
	RunAddress       string        `env:"RUN_ADDRESS"`
	APIBaseURL       string        `env:"API_BASE_URL"`
	DatabaseURI      string        `env:"DATABASE_URI"`
	RedisAddr        string        `env:"REDIS_ADDR"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT"`
	CarouselInterval time.Duration `env:"CAROUSEL_INTERVAL"`
	AllowedOrigins   []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	// Файл .env необязателен и не перекрывает уже заданные переменные.
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envCfg := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.APIBaseURL, "b", "", "E-mind API base URL")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI for the verification audit trail")
	flag.StringVar(&cfg.RedisAddr, "r", "", "Redis address for the session store")
	flag.DurationVar(&cfg.RequestTimeout, "t", defaultRequestTimeout, "API request timeout")
	flag.DurationVar(&cfg.CarouselInterval, "i", defaultCarouselInterval, "carousel auto-advance interval")

	origins := flag.String("o", "", "comma-separated origins allowed to open the carousel websocket")

	flag.Parse()

	if len(envCfg.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = envCfg.AllowedOrigins
	} else {
		cfg.AllowedOrigins = splitList(*origins)
	}

	if envCfg.RunAddress != "" {
		cfg.RunAddress = envCfg.RunAddress
	}
	if envCfg.APIBaseURL != "" {
		cfg.APIBaseURL = envCfg.APIBaseURL
	}
	if envCfg.DatabaseURI != "" {
		cfg.DatabaseURI = envCfg.DatabaseURI
	}
	if envCfg.RedisAddr != "" {
		cfg.RedisAddr = envCfg.RedisAddr
	}
	if envCfg.RequestTimeout > 0 {
		cfg.RequestTimeout = envCfg.RequestTimeout
	}
	if envCfg.CarouselInterval > 0 {
		cfg.CarouselInterval = envCfg.CarouselInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.CarouselInterval <= 0 {
		cfg.CarouselInterval = defaultCarouselInterval
	}

	if cfg.APIBaseURL == "" {
		return nil, ErrMissingAPIBaseURL
	}

	return cfg, nil
}

func splitList(s string) []string {
	var res []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			res = append(res, part)
		}
	}
	return res
}
