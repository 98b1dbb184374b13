// Package config loads service settings from the environment with sane
// local-development defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	KafkaBrokers  []string
	ConsumerGroup string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisAddr     string
	RedisPassword string

	CatalogURL      string
	CatalogTimeout  time.Duration
	CatalogCacheTTL time.Duration

	JWTSecret string

	DefaultUnitPrice decimal.Decimal

	ChargeTimeout   time.Duration
	DispatchTimeout time.Duration

	// MaxAttempts bounds in-process retries before a message is
	// dead-lettered; RetryBackoff is the initial backoff step.
	MaxAttempts  int
	RetryBackoff time.Duration

	HTTPAddr       string
	JaegerEndpoint string
}

// Load reads the environment for the named service. The service name picks
// the consumer group and database defaults, mirroring the one-database-per-
// processor ownership rule.
func Load(service string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("KAFKA_BROKER", "localhost:9092")
	v.SetDefault("CONSUMER_GROUP", service)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", strings.ReplaceAll(service, "-", "")+"db")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("CATALOG_URL", "http://localhost:8085")
	v.SetDefault("CATALOG_TIMEOUT", "5s")
	v.SetDefault("CATALOG_CACHE_TTL", "5m")
	v.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	v.SetDefault("DEFAULT_UNIT_PRICE", "29.99")
	v.SetDefault("CHARGE_TIMEOUT", "10s")
	v.SetDefault("DISPATCH_TIMEOUT", "10s")
	v.SetDefault("RETRY_MAX_ATTEMPTS", 5)
	v.SetDefault("RETRY_BACKOFF", "200ms")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("JAEGER_ENDPOINT", "http://localhost:14268/api/traces")

	price, err := decimal.NewFromString(v.GetString("DEFAULT_UNIT_PRICE"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_UNIT_PRICE: %w", err)
	}

	return &Config{
		KafkaBrokers:     strings.Split(v.GetString("KAFKA_BROKER"), ","),
		ConsumerGroup:    v.GetString("CONSUMER_GROUP"),
		DBHost:           v.GetString("DB_HOST"),
		DBPort:           v.GetString("DB_PORT"),
		DBUser:           v.GetString("DB_USER"),
		DBPassword:       v.GetString("DB_PASSWORD"),
		DBName:           v.GetString("DB_NAME"),
		RedisAddr:        v.GetString("REDIS_HOST") + ":" + v.GetString("REDIS_PORT"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		CatalogURL:       v.GetString("CATALOG_URL"),
		CatalogTimeout:   v.GetDuration("CATALOG_TIMEOUT"),
		CatalogCacheTTL:  v.GetDuration("CATALOG_CACHE_TTL"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		DefaultUnitPrice: price,
		ChargeTimeout:    v.GetDuration("CHARGE_TIMEOUT"),
		DispatchTimeout:  v.GetDuration("DISPATCH_TIMEOUT"),
		MaxAttempts:      v.GetInt("RETRY_MAX_ATTEMPTS"),
		RetryBackoff:     v.GetDuration("RETRY_BACKOFF"),
		HTTPAddr:         v.GetString("HTTP_ADDR"),
		JaegerEndpoint:   v.GetString("JAEGER_ENDPOINT"),
	}, nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}
