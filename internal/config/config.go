package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	Log    LogConfig
	Parser ParserConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	BodyLimitMB  int
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
}

type LogConfig struct {
	Level  string
	Format string
}

type ParserConfig struct {
	BlankLineLimit int
	DefaultYear    int
	RulesFile      string
	MaxWorkers     int
}

// Load reads configuration from environment variables, after loading a
// .env file from the working directory if one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			BodyLimitMB:  getEnvAsInt("SERVER_BODY_LIMIT_MB", 50),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 60),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Parser: ParserConfig{
			BlankLineLimit: getEnvAsInt("PARSER_BLANK_LINE_LIMIT", 2),
			DefaultYear:    getEnvAsInt("PARSER_DEFAULT_YEAR", 0),
			RulesFile:      getEnv("PARSER_RULES_FILE", ""),
			MaxWorkers:     getEnvAsInt("PARSER_MAX_WORKERS", 4),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port)
	}
	if c.Server.BodyLimitMB <= 0 {
		return fmt.Errorf("SERVER_BODY_LIMIT_MB must be positive: %d", c.Server.BodyLimitMB)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.Log.Format)
	}
	if c.Parser.BlankLineLimit < 1 {
		return fmt.Errorf("PARSER_BLANK_LINE_LIMIT must be at least 1: %d", c.Parser.BlankLineLimit)
	}
	if c.Parser.MaxWorkers < 1 {
		return fmt.Errorf("PARSER_MAX_WORKERS must be at least 1: %d", c.Parser.MaxWorkers)
	}
	return nil
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
