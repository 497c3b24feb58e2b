package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	Payment      PaymentConfig
	Storage      StorageConfig
	Notification NotificationConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

// IsDevelopment reports whether the server runs outside production
func (c ServerConfig) IsDevelopment() bool {
	return c.Env != "production"
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

// DSN builds a pgx connection string
func (c DatabaseConfig) DSN() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + c.Port + "/" + c.Database +
		"?sslmode=disable&search_path=" + c.Schema
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret       string
	AccessExpiry int // in minutes
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// PaymentConfig configures the hosted checkout. An empty StripeSecretKey
// puts order creation in demo mode.
type PaymentConfig struct {
	StripeSecretKey string
	Currency        string
	SuccessURL      string
	CancelURL       string
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Enabled reports whether a payment processor is configured
func (c PaymentConfig) Enabled() bool {
	return c.StripeSecretKey != ""
}

type StorageConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	PublicURL string
}

type NotificationConfig struct {
	Topic  string
	Buffer int64
}

func Load() *Config {
	// Values already present in the environment win over .env
	_ = godotenv.Load()

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	SetDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:       viper.GetString("JWT_SECRET"),
			AccessExpiry: viper.GetInt("JWT_ACCESS_EXPIRY"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   viper.GetDuration("RATE_LIMIT_WINDOW"),
		},
		Payment: PaymentConfig{
			StripeSecretKey: viper.GetString("STRIPE_SECRET_KEY"),
			Currency:        strings.ToLower(viper.GetString("STRIPE_CURRENCY")),
			SuccessURL:      viper.GetString("STRIPE_SUCCESS_URL"),
			CancelURL:       viper.GetString("STRIPE_CANCEL_URL"),
			BreakerFailures: viper.GetUint32("PAYMENT_BREAKER_FAILURES"),
			BreakerTimeout:  viper.GetDuration("PAYMENT_BREAKER_TIMEOUT"),
		},
		Storage: StorageConfig{
			Endpoint:  viper.GetString("S3_ENDPOINT"),
			Region:    viper.GetString("S3_REGION"),
			AccessKey: viper.GetString("S3_ACCESS_KEY"),
			SecretKey: viper.GetString("S3_SECRET_KEY"),
			Bucket:    viper.GetString("S3_BUCKET"),
			PublicURL: viper.GetString("S3_PUBLIC_URL"),
		},
		Notification: NotificationConfig{
			Topic:  viper.GetString("NOTIFY_TOPIC"),
			Buffer: viper.GetInt64("NOTIFY_BUFFER"),
		},
	}
}

// SetDefaults registers the fallback value of every setting
func SetDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ACCESS_EXPIRY", 60)
	viper.SetDefault("RATE_LIMIT_REQUESTS", 120)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")
	viper.SetDefault("STRIPE_CURRENCY", "eur")
	viper.SetDefault("STRIPE_SUCCESS_URL", "http://localhost:8080/payments/success")
	viper.SetDefault("STRIPE_CANCEL_URL", "http://localhost:8080/payments/cancel")
	viper.SetDefault("PAYMENT_BREAKER_FAILURES", 5)
	viper.SetDefault("PAYMENT_BREAKER_TIMEOUT", "30s")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("NOTIFY_TOPIC", "orders.created")
	viper.SetDefault("NOTIFY_BUFFER", 64)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
