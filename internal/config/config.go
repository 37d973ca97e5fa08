package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	environment := GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(logrus.DebugLevel)
	case "production":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

// Config used for the application configuration, loading the input from environment variables
type Config struct {
	// Server Configuration
	Port      int    `json:"port"`
	Host      string `json:"host"`
	IssuerURL string `json:"issuer_url"`

	// Database configuration
	DBDriver   string `json:"db_driver"`
	DBHost     string `json:"db_host"`
	DBPort     string `json:"db_port"`
	DBName     string `json:"db_name"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBPath     string `json:"db_path"`

	// Logging configuration
	LogLevel string `json:"log_level"`

	// Token configuration
	IDTokenSecret   string        `json:"id_token_secret"`
	AccessTokenTTL  time.Duration `json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `json:"refresh_token_ttl"`
	AuthCodeTTL     time.Duration `json:"auth_code_ttl"`

	// Scope policy
	AllowedScopes []string `json:"allowed_scopes"`
	DefaultScopes []string `json:"default_scopes"`
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, Host: %s, IssuerURL: %s, DBDriver: %s, DBName: %s, DBUser: %s, DBPassword: [REDACTED], LogLevel: %s, IDTokenSecret: [REDACTED], AllowedScopes: %v}",
		c.Port, c.Host, c.IssuerURL, c.DBDriver, c.DBName, c.DBUser, c.LogLevel, c.AllowedScopes)
}

// LoadConfig reads the configuration from environment variables and
// validates the pieces the authorization server cannot run without: the
// issuer URL (it ends up in every ID Token and the discovery document)
// and the ID Token signing secret.
func LoadConfig() (*Config, error) {
	log.Info("Loading configuration from environment variables")
	port, err := strconv.Atoi(GetEnvWithDefault("APP_PORT", "8080"))
	if err != nil {
		return nil, err
	}

	issuer := GetEnvWithDefault("ISSUER_URL", "")
	if issuer == "" {
		return nil, errors.New("ISSUER_URL environment variable is required")
	}
	if _, err := url.ParseRequestURI(issuer); err != nil {
		return nil, fmt.Errorf("invalid ISSUER_URL format: %s", issuer)
	}

	secret := GetEnvWithDefault("ID_TOKEN_SECRET", "")
	if secret == "" {
		return nil, errors.New("ID_TOKEN_SECRET environment variable is required")
	}
	if len(secret) < 32 {
		return nil, errors.New("ID_TOKEN_SECRET must be at least 32 bytes")
	}

	config := &Config{
		Port:            port,
		Host:            GetEnvWithDefault("APP_HOST", "localhost"),
		IssuerURL:       strings.TrimRight(issuer, "/"),
		DBDriver:        GetEnvWithDefault("DB_DRIVER", "sqlite"),
		DBHost:          GetEnvWithDefault("DB_HOST", "localhost"),
		DBPort:          GetEnvWithDefault("DB_PORT", "5432"),
		DBName:          GetEnvWithDefault("DB_NAME", "authdb"),
		DBUser:          GetEnvWithDefault("DB_USER", "auth"),
		DBPassword:      GetEnvWithDefault("DB_PASSWORD", ""),
		DBPath:          GetEnvWithDefault("DB_PATH", "auth.sqlite"),
		LogLevel:        GetEnvWithDefault("LOG_LEVEL", "info"),
		IDTokenSecret:   secret,
		AccessTokenTTL:  time.Duration(GetEnvAsType("ACCESS_TOKEN_TTL", 3600)) * time.Second,
		RefreshTokenTTL: time.Duration(GetEnvAsType("REFRESH_TOKEN_TTL", 2592000)) * time.Second,
		AuthCodeTTL:     time.Duration(GetEnvAsType("AUTH_CODE_TTL", 600)) * time.Second,
		AllowedScopes:   strings.Fields(GetEnvWithDefault("ALLOWED_SCOPES", "openid profile email offline_access repo:read repo:write graph:read apps:read flags:read")),
		DefaultScopes:   strings.Fields(GetEnvWithDefault("DEFAULT_SCOPES", "openid profile")),
	}
	log.Infof("Configuration loaded: %s", config.String())
	return config, nil
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Warnf("Environment variable %s not set, using default value: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling.
func GetEnvAsType[T any](key string, defaultValue T) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return any(intValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return any(boolValue).(T)
	default:
		return defaultValue
	}
}
