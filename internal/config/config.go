package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all service configuration
type Config struct {
	// Server configuration
	Port string

	// Database configuration
	DBType                 string // mysql, postgres, sqlite, sqlserver, etc.
	DBHost                 string
	DBPort                 string
	DBDatabase             string
	DBAppUser              string
	DBAppPassword          string
	DBAppConnectionLimit   int
	DBAdminUser            string
	DBAdminPassword        string
	DBAdminConnectionLimit int

	// Authorizer configuration
	AuthzURL      string
	AuthzClientID string

	// Builder autosave configuration
	AutosaveDebounceMs int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                   getEnv("PORT", "3000"),
		DBType:                 getEnv("DB_TYPE", "postgres"),
		DBHost:                 getEnv("DB_HOST", "localhost"),
		DBPort:                 getEnv("DB_PORT", "5432"),
		DBDatabase:             getEnv("DB_DATABASE", ""),
		DBAppUser:              getEnv("DB_APP_USER", ""),
		DBAppPassword:          getEnv("DB_APP_PASSWORD", ""),
		DBAppConnectionLimit:   getEnvAsInt("DB_APP_CONNECTION_LIMIT", 5),
		DBAdminUser:            getEnv("DB_ADMIN_USER", ""),
		DBAdminPassword:        getEnv("DB_ADMIN_PASSWORD", ""),
		DBAdminConnectionLimit: getEnvAsInt("DB_ADMIN_CONNECTION_LIMIT", 5),
		AuthzURL:               getEnv("AUTHZ_URL", ""),
		AuthzClientID:          getEnv("AUTHZ_CLIENT_ID", ""),
		AutosaveDebounceMs:     getEnvAsInt("AUTOSAVE_DEBOUNCE_MS", 5000),
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.DBAppUser == "" {
		return nil, fmt.Errorf("DB_APP_USER is required")
	}
	if cfg.DBAdminUser == "" {
		return nil, fmt.Errorf("DB_ADMIN_USER is required")
	}
	if cfg.AuthzURL == "" {
		return nil, fmt.Errorf("AUTHZ_URL is required")
	}
	if cfg.AuthzClientID == "" {
		return nil, fmt.Errorf("AUTHZ_CLIENT_ID is required")
	}
	if cfg.AutosaveDebounceMs <= 0 {
		return nil, fmt.Errorf("AUTOSAVE_DEBOUNCE_MS must be positive")
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
