package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AppEnv                string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	ReportCacheTTLSeconds int
	AuthSecret            string
	AccessTokenTTLMinutes int
	OwnerEmail            string
	SMTP                  SMTPConfig
	Kafka                 KafkaConfig
	Stock                 StockConfig
	Logger                LoggerConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Enabled reports whether alert email can be delivered at all.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type KafkaConfig struct {
	Brokers    []string
	SalesTopic string
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type StockConfig struct {
	DefaultRatio   float64
	OversellPolicy string
	LockTTLSeconds int
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

func Load() Config {
	cacheTTL := getEnvInt("REPORT_CACHE_TTL_SECONDS", 30)
	if cacheTTL < 1 {
		cacheTTL = 30
	}
	tokenTTL := getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 480)
	if tokenTTL < 1 {
		tokenTTL = 480
	}
	lockTTL := getEnvInt("LOCK_TTL_SECONDS", 5)
	if lockTTL < 1 {
		lockTTL = 5
	}
	ratio := getEnvFloat("DEFAULT_STOCK_RATIO", 0.8)
	if ratio < 0 || ratio > 1 {
		ratio = 0.8
	}

	appEnv := getEnv("APP_ENV", "production")
	encoding := "json"
	if appEnv == "development" {
		encoding = "console"
	}

	smtpUser := os.Getenv("SMTP_USERNAME")
	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AppEnv:                appEnv,
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		ReportCacheTTLSeconds: cacheTTL,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		OwnerEmail:            strings.TrimSpace(os.Getenv("OWNER_EMAIL")),
		SMTP: SMTPConfig{
			Host:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: smtpUser,
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("SMTP_FROM", smtpUser),
		},
		Kafka: KafkaConfig{
			Brokers:    getEnvSlice("KAFKA_BROKERS", nil),
			SalesTopic: getEnv("KAFKA_SALES_TOPIC", "omnistock.sales"),
		},
		Stock: StockConfig{
			DefaultRatio:   ratio,
			OversellPolicy: getEnv("OVERSELL_POLICY", "clamp"),
			LockTTLSeconds: lockTTL,
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOGGER_LEVEL", "info"),
			Encoding: getEnv("LOGGER_ENCODING", encoding),
		},
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
