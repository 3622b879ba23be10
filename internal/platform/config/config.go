package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type HTTPConfig struct {
	Addr string
	// Prefix is the mount point of the comment routes, e.g. "/api".
	Prefix string
	// CORSAllowedOrigins is the raw comma separated origin list.
	CORSAllowedOrigins string
}

type GRPCConfig struct {
	Addr string
}

type AppConfig struct {
	ServiceName string
	Env         string
	LogLevel    string
	DatabaseURL string
	JWTSecret   string
	NATSURL     string
	HTTP        HTTPConfig
	GRPC        GRPCConfig
}

// IsProduction reports whether APP_ENV is "production".
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables
// take precedence over it.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		ServiceName: env("SERVICE_NAME"),
		Env:         env("APP_ENV"),
		LogLevel:    env("LOG_LEVEL"),
		DatabaseURL: env("DATABASE_URL"),
		JWTSecret:   env("JWT_SECRET"),
		NATSURL:     env("NATS_URL"),
		HTTP: HTTPConfig{
			Addr:               env("HTTP_ADDR"),
			Prefix:             env("API_PREFIX"),
			CORSAllowedOrigins: env("CORS_ALLOWED_ORIGINS"),
		},
		GRPC: GRPCConfig{
			Addr: env("GRPC_ADDR"),
		},
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "discussion"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.GRPC.Addr == "" {
		cfg.GRPC.Addr = ":9090"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.HTTP.Prefix = normalizePrefix(cfg.HTTP.Prefix)

	if cfg.IsProduction() && cfg.DatabaseURL == "" {
		return AppConfig{}, errors.New("DATABASE_URL is required in production")
	}
	return cfg, nil
}

func normalizePrefix(p string) string {
	if p == "" {
		return "/api"
	}
	if p == "/" {
		return ""
	}
	p = "/" + strings.Trim(p, "/")
	return p
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
