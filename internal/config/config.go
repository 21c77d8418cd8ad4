package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	AppName string `toml:"app_name"`
	Env     string `toml:"env"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`

	Database DatabaseConfig `toml:"database"`

	JWTSecret string `toml:"jwt_secret"`
	// TrustQueryIdentity accepts a raw userId query parameter as the
	// connection identity when no token is supplied. Development only.
	TrustQueryIdentity bool `toml:"trust_query_identity"`

	CORSOrigins []string `toml:"cors_origins"`
	LogLevel    string   `toml:"log_level"`
	LogFormat   string   `toml:"log_format"` // "text" or "json"

	WSSendBuffer    int `toml:"ws_send_buffer"`
	WSPingSeconds   int `toml:"ws_ping_seconds"`
	MaxMessageChars int `toml:"max_message_chars"`
}

// DatabaseConfig uses a tagged union pattern: Driver decides how DSN is read.
type DatabaseConfig struct {
	Driver string `toml:"driver"` // "sqlite", "postgres" or "memory"
	DSN    string `toml:"dsn"`
}

// Defaults returns the configuration used when neither a file nor the
// environment says otherwise.
func Defaults() *Config {
	return &Config{
		AppName: "chat realtime",
		Env:     "development",
		Host:    "0.0.0.0",
		Port:    4000,
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "chat.db",
		},
		CORSOrigins:     []string{"http://localhost:5173"},
		LogLevel:        "info",
		LogFormat:       "text",
		WSSendBuffer:    64,
		WSPingSeconds:   30,
		MaxMessageChars: 5000,
	}
}

// Load builds the configuration from defaults, then the TOML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		path = os.Getenv("CHAT_CONFIG")
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.AppName = getEnv("APP_NAME", cfg.AppName)
	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.Host = getEnv("HTTP_HOST", cfg.Host)
	cfg.Port = getEnvAsInt("HTTP_PORT", cfg.Port)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnv("DB_DSN", cfg.Database.DSN)
	if cfg.Database.Driver == "postgres" && os.Getenv("DB_DSN") == "" && os.Getenv("POSTGRES_HOST") != "" {
		cfg.Database.DSN = postgresDSNFromEnv()
	}

	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.TrustQueryIdentity = getEnvAsBool("TRUST_QUERY_IDENTITY", cfg.TrustQueryIdentity)

	if cors := getEnv("CORS_ORIGINS", ""); cors != "" {
		parts := strings.Split(cors, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		cfg.CORSOrigins = parts
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.WSSendBuffer = getEnvAsInt("WS_SEND_BUFFER", cfg.WSSendBuffer)
	cfg.WSPingSeconds = getEnvAsInt("WS_PING_SECONDS", cfg.WSPingSeconds)
	cfg.MaxMessageChars = getEnvAsInt("MAX_MESSAGE_CHARS", cfg.MaxMessageChars)
}

func postgresDSNFromEnv() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "postgres"), getEnv("POSTGRES_PASSWORD", "postgres")),
		Host:     fmt.Sprintf("%s:%s", getEnv("POSTGRES_HOST", "localhost"), getEnv("POSTGRES_PORT", "5432")),
		Path:     getEnv("POSTGRES_DB", "chat"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.JWTSecret == "" && !c.TrustQueryIdentity {
		return errors.New("JWT_SECRET is required unless TRUST_QUERY_IDENTITY is set")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.WSSendBuffer <= 0 {
		return fmt.Errorf("ws_send_buffer must be positive, got %d", c.WSSendBuffer)
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PingInterval is the WebSocket keep-alive period.
func (c *Config) PingInterval() time.Duration {
	if c.WSPingSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.WSPingSeconds) * time.Second
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvAsBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
