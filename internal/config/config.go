package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	JWTSecret  string
	SessionTTL time.Duration

	UploadDir       string
	MaxAudioSizeMB  int64
	MaxImageSizeMB  int64
	CORSOrigins     []string
	StorageDriver   string
	ResetPerMinute  int
	ExposeResetCode bool

	MySQL MySQL
	Redis Redis
	Kafka Kafka

	AdminUsername string
	AdminPassword string
	DemoUsername  string
	DemoPassword  string
}

type MySQL struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

type Redis struct {
	Host     string
	Port     string
	Password string
}

// Addr is empty when no Redis host is configured.
func (r Redis) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type Kafka struct {
	Brokers []string
	Topic   string
}

func (c *Config) Production() bool { return c.Env == "production" }

// DevJWTSecret signs sessions when JWT_SECRET is unset. Validate refuses it
// in production.
const DevJWTSecret = "tunehaven-dev-secret"

// Validate reports settings that are unsafe for the current environment.
func (c *Config) Validate() error {
	if c.Production() && (c.JWTSecret == DevJWTSecret || len(c.JWTSecret) < 16) {
		return errors.New("JWT_SECRET must be set to at least 16 characters in production")
	}
	return nil
}

// Load reads .env if present and then the process environment. The returned
// bool reports whether a .env file was found.
func Load() (*Config, bool) {
	found := godotenv.Load() == nil
	return FromEnv(os.Getenv), found
}

// FromEnv builds a Config from getenv, filling defaults for unset keys.
func FromEnv(getenv func(string) string) *Config {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	env := get("ENV", "development")
	cfg := &Config{
		Port:     get("PORT", "8080"),
		Env:      env,
		LogLevel: get("LOG_LEVEL", "info"),

		JWTSecret:  get("JWT_SECRET", DevJWTSecret),
		SessionTTL: duration(get("SESSION_TTL", ""), 7*24*time.Hour),

		UploadDir:       get("UPLOAD_DIR", "uploads"),
		MaxAudioSizeMB:  int64(integer(get("MAX_AUDIO_SIZE_MB", ""), 50)),
		MaxImageSizeMB:  int64(integer(get("MAX_IMAGE_SIZE_MB", ""), 5)),
		CORSOrigins:     list(get("CORS_ORIGINS", "http://localhost:5173")),
		StorageDriver:   strings.ToLower(get("STORAGE_DRIVER", "memory")),
		ResetPerMinute:  integer(get("RESET_RATE_PER_MINUTE", ""), 5),
		ExposeResetCode: boolean(get("EXPOSE_RESET_TOKEN", ""), env != "production"),

		MySQL: MySQL{
			Host:     get("MYSQL_HOST", "localhost"),
			Port:     get("MYSQL_PORT", "3306"),
			User:     get("MYSQL_USER", "root"),
			Password: getenv("MYSQL_PASSWORD"),
			Database: get("MYSQL_DATABASE", "tunehaven"),
		},
		Redis: Redis{
			Host:     getenv("REDIS_HOST"),
			Port:     get("REDIS_PORT", "6379"),
			Password: getenv("REDIS_PASSWORD"),
		},
		Kafka: Kafka{
			Brokers: list(getenv("KAFKA_BROKERS")),
			Topic:   get("KAFKA_TOPIC", "tunehaven-events"),
		},

		AdminUsername: get("ADMIN_USERNAME", "admin"),
		AdminPassword: get("ADMIN_PASSWORD", "Admin123!"),
		DemoUsername:  get("DEMO_USERNAME", "demo"),
		DemoPassword:  get("DEMO_PASSWORD", "Demo123!"),
	}
	return cfg
}

func duration(raw string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return def
}

func integer(raw string, def int) int {
	if n, err := strconv.Atoi(raw); err == nil && n > 0 {
		return n
	}
	return def
}

func boolean(raw string, def bool) bool {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return def
}

func list(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
