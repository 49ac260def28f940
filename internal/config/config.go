package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	AppPort         string
	AppEnv          string
	PublicKey       string
	SecretKey       string
	APIBaseURL      string
	FacebookPixelID string
	GTMID           string
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	KafkaBrokers    []string
	AnalyticsTopic  string
	SessionSecret   string
	SessionTTL      time.Duration
	SessionIdle     time.Duration
	SDKTimeout      time.Duration
	AllowedOrigins  string
}

// IsDevelopment reports whether debug output (homepage placeholders) is enabled.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load reads environment variables and returns a populated Config.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		AppPort:         getEnv("APP_PORT", "8080"),
		AppEnv:          getEnv("APP_ENV", "development"),
		PublicKey:       firstEnv("NEXT_PUBLIC_STOREFRONT_PUBLIC_KEY", "STOREFRONT_PUBLIC_KEY"),
		SecretKey:       getEnv("STOREFRONT_SECRET_KEY", ""),
		APIBaseURL:      firstEnv("NEXT_PUBLIC_API_BASE_URL", "API_BASE_URL"),
		FacebookPixelID: getEnv("NEXT_PUBLIC_FACEBOOK_PIXEL_ID", ""),
		GTMID:           getEnv("NEXT_PUBLIC_GTM_ID", ""),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		AnalyticsTopic:  getEnv("ANALYTICS_TOPIC", "storefront.analytics"),
		SessionTTL:      getEnvDuration("SESSION_TTL_HOURS", 24*30) * time.Hour,
		SessionIdle:     getEnvDuration("SESSION_IDLE_MINUTES", 30) * time.Minute,
		SDKTimeout:      getEnvDuration("SDK_TIMEOUT_SECONDS", 15) * time.Second,
		AllowedOrigins:  getEnv("ALLOWED_ORIGINS", "*"),
	}

	if cfg.AppPort == "" {
		log.Fatal("APP_PORT must be set")
	}

	if cfg.PublicKey == "" {
		log.Fatal("NEXT_PUBLIC_STOREFRONT_PUBLIC_KEY must be set")
	}

	secret, err := sessionSecret(cfg.AppEnv)
	if err != nil {
		log.Fatal(err)
	}
	cfg.SessionSecret = secret

	return cfg
}

const devSessionSecret = "dev-session-secret-change-me"

var errMissingSessionSecret = errors.New("SESSION_SECRET must be set outside development")

// sessionSecret returns SESSION_SECRET. Only development may run on the built-in secret.
func sessionSecret(appEnv string) (string, error) {
	if value := strings.TrimSpace(os.Getenv("SESSION_SECRET")); value != "" {
		return value, nil
	}
	if appEnv != "development" {
		return "", errMissingSessionSecret
	}
	log.Println("SESSION_SECRET not set, using the development secret")
	return devSessionSecret, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// firstEnv returns the first non-empty value among keys.
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func getEnvDuration(key string, fallback int) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return time.Duration(parsed)
		}
	}
	return time.Duration(fallback)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
