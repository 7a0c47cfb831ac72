package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultDBPath    = "data/talos.db"
	defaultOllamaURL = "http://localhost:11434"
	defaultTimeout   = 120 * time.Second
)

// Config aggregates every configuration section of the service.
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Ollama OllamaConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ollama, err := loadOllamaConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Store:  StoreConfig{Path: getEnvOrDefault("TALOS_DB_PATH", defaultDBPath)},
		Ollama: ollama,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" directly.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// StoreConfig locates the database file.
type StoreConfig struct {
	Path string
}

// OllamaConfig describes the generation-service endpoint.
type OllamaConfig struct {
	URL     string
	Timeout time.Duration
}

func loadOllamaConfig() (OllamaConfig, error) {
	timeout := defaultTimeout
	if override, err := parseOptionalIntEnv("OLLAMA_TIMEOUT"); err != nil {
		return OllamaConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return OllamaConfig{}, fmt.Errorf("OLLAMA_TIMEOUT must be positive, got %d", *override)
		}
		timeout = time.Duration(*override) * time.Second
	}

	return OllamaConfig{
		URL:     strings.TrimRight(getEnvOrDefault("OLLAMA_URL", defaultOllamaURL), "/"),
		Timeout: timeout,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
