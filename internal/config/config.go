// Package config loads the service configuration: defaults, then an optional
// YAML file, then environment variables (a .env file is loaded first if present).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
		Mode string `yaml:"mode"` // gin mode: debug, release, test
	} `yaml:"server"`

	Database struct {
		Driver string `yaml:"driver"` // postgres or sqlite
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret     string        `yaml:"jwt_secret"`
		TokenTTL      time.Duration `yaml:"token_ttl"`
		Issuer        string        `yaml:"issuer"`
		AllowedDomain string        `yaml:"allowed_domain"`
		AdminUserID   string        `yaml:"admin_user_id"`
	} `yaml:"auth"`

	Moderation struct {
		GeminiAPIKey    string        `yaml:"gemini_api_key"`
		Model           string        `yaml:"model"`
		Timeout         time.Duration `yaml:"timeout"`
		BlockedPatterns []string      `yaml:"blocked_patterns"`
	} `yaml:"moderation"`

	Presence struct {
		TTL       time.Duration `yaml:"ttl"`
		Heartbeat time.Duration `yaml:"heartbeat"`
	} `yaml:"presence"`

	Telegram struct {
		BotToken    string `yaml:"bot_token"`
		AdminChatID int64  `yaml:"admin_chat_id"`
	} `yaml:"telegram"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json or pretty
	} `yaml:"logging"`
}

// Load reads configuration from path (skipped if the file does not exist) and
// the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	setDefaults(cfg)

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Server.Addr = ":8080"
	cfg.Server.Mode = "release"

	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = "host=localhost user=user password=password dbname=whisperdb port=5432 sslmode=disable"

	cfg.Redis.Addr = "localhost:6380"

	cfg.Auth.TokenTTL = 72 * time.Hour
	cfg.Auth.Issuer = "campus-whisper"
	cfg.Auth.AllowedDomain = "@student.bup.edu.bd"

	cfg.Moderation.Model = DefaultModerationModel
	cfg.Moderation.Timeout = DefaultModerationTimeout

	cfg.Presence.TTL = DefaultPresenceTTL
	cfg.Presence.Heartbeat = DefaultPresenceHeartbeat

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
}

func loadFromEnv(cfg *Config) error {
	cfg.Server.Addr = GetEnv("SERVER_ADDR", cfg.Server.Addr)
	cfg.Server.Mode = GetEnv("GIN_MODE", cfg.Server.Mode)

	cfg.Database.Driver = GetEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = GetEnv("DB_DSN", cfg.Database.DSN)

	cfg.Redis.Addr = GetEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = GetEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = GetEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.Auth.JWTSecret = GetEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.TokenTTL = GetEnvAsDuration("JWT_TTL", cfg.Auth.TokenTTL)
	cfg.Auth.Issuer = GetEnv("JWT_ISSUER", cfg.Auth.Issuer)
	cfg.Auth.AllowedDomain = GetEnv("ALLOWED_EMAIL_DOMAIN", cfg.Auth.AllowedDomain)
	cfg.Auth.AdminUserID = GetEnv("ADMIN_USER_ID", cfg.Auth.AdminUserID)

	cfg.Moderation.GeminiAPIKey = GetEnv("GEMINI_API_KEY", cfg.Moderation.GeminiAPIKey)
	cfg.Moderation.Model = GetEnv("GEMINI_MODEL", cfg.Moderation.Model)
	cfg.Moderation.Timeout = GetEnvAsDuration("MODERATION_TIMEOUT", cfg.Moderation.Timeout)
	if patterns := GetEnv("MODERATION_BLOCKED_PATTERNS", ""); patterns != "" {
		cfg.Moderation.BlockedPatterns = splitList(patterns)
	}

	cfg.Presence.TTL = GetEnvAsDuration("PRESENCE_TTL", cfg.Presence.TTL)
	cfg.Presence.Heartbeat = GetEnvAsDuration("PRESENCE_HEARTBEAT", cfg.Presence.Heartbeat)

	cfg.Telegram.BotToken = GetEnv("TELEGRAM_BOT_TOKEN", cfg.Telegram.BotToken)
	if raw := GetEnv("TELEGRAM_ADMIN_CHAT_ID", ""); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_ADMIN_CHAT_ID: %w", err)
		}
		cfg.Telegram.AdminChatID = id
	}

	cfg.Logging.Level = GetEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = GetEnv("LOG_FORMAT", cfg.Logging.Format)
	return nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT secret is required")
	}
	if !strings.HasPrefix(c.Auth.AllowedDomain, "@") {
		return fmt.Errorf("allowed domain %q must start with @", c.Auth.AllowedDomain)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("unsupported server mode %q", c.Server.Mode)
	}
	if c.Presence.Heartbeat <= 0 || c.Presence.TTL <= c.Presence.Heartbeat {
		return errors.New("presence TTL must be longer than the heartbeat interval")
	}
	return nil
}

// GetEnv gets an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt gets an environment variable as an integer or returns a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(GetEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvAsDuration gets an environment variable as a duration or returns a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(GetEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
