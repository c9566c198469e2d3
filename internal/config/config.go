package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser  string
	DBPass  string
	DBHost  string
	DBPort  string
	DBName  string
	SSLMode string

	RedisHost string
	RedisPort string

	NatsHost string
	NatsPort string

	ApiPort    string
	ApiEnabled string

	// TopupMaxAmount caps a single top-up, in minor units. 0 disables the cap.
	TopupMaxAmount int64
	// EmitAttempts bounds notification publish retries per event.
	EmitAttempts int

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
}

// New loads and validates configuration from environment variables.
// The HTTP API is optional: if SALDO_API_ENABLED != "true", ApiAddr() returns
// an error and the HTTP server simply won't start. SMTP settings are only
// required by the notification worker and are validated there, not here.
func New() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:         os.Getenv("SALDO_POSTGRES_USER"),
		DBPass:         os.Getenv("SALDO_POSTGRES_PASSWORD"),
		DBHost:         os.Getenv("SALDO_POSTGRES_HOST"),
		DBPort:         os.Getenv("SALDO_POSTGRES_PORT"),
		DBName:         os.Getenv("SALDO_POSTGRES_DB"),
		SSLMode:        os.Getenv("SALDO_POSTGRES_SSLMODE"),
		RedisHost:      os.Getenv("SALDO_REDIS_HOST"),
		RedisPort:      os.Getenv("SALDO_REDIS_PORT"),
		NatsHost:       os.Getenv("SALDO_NATS_HOST"),
		NatsPort:       os.Getenv("SALDO_NATS_PORT"),
		ApiPort:        os.Getenv("SALDO_API_PORT"),
		ApiEnabled:     os.Getenv("SALDO_API_ENABLED"),
		TopupMaxAmount: int64(getEnvInt("SALDO_TOPUP_MAX_AMOUNT", 50000)),
		EmitAttempts:   getEnvInt("SALDO_EMIT_ATTEMPTS", 3),
		SMTPHost:       os.Getenv("SALDO_SMTP_HOST"),
		SMTPPort:       os.Getenv("SALDO_SMTP_PORT"),
		SMTPUser:       os.Getenv("SALDO_SMTP_USER"),
		SMTPPassword:   os.Getenv("SALDO_SMTP_PASSWORD"),
		SMTPFrom:       os.Getenv("SALDO_SMTP_FROM"),
	}

	// Required: database
	if cfg.DBUser == "" || cfg.DBHost == "" || cfg.DBName == "" || cfg.SSLMode == "" {
		return nil, fmt.Errorf("missing required env for database: SALDO_POSTGRES_USER/HOST/DB/SSLMODE")
	}

	// Required: redis
	if cfg.RedisHost == "" || cfg.RedisPort == "" {
		return nil, fmt.Errorf("missing required env for redis: SALDO_REDIS_HOST/PORT")
	}

	// Required: nats (the notification bus)
	if cfg.NatsHost == "" || cfg.NatsPort == "" {
		return nil, fmt.Errorf("missing required env for nats bus: SALDO_NATS_HOST/PORT")
	}

	if cfg.EmitAttempts < 1 {
		return nil, fmt.Errorf("SALDO_EMIT_ATTEMPTS must be >= 1")
	}

	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPass, c.DBHost, c.DBPort, c.DBName, c.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func (c *Config) NatsAddr() string {
	return fmt.Sprintf("nats://%s:%s", c.NatsHost, c.NatsPort)
}

// ApiAddr returns the HTTP listen address if the API is enabled.
// Returns an error if SALDO_API_ENABLED != "true" — callers should skip starting the HTTP server.
func (c *Config) ApiAddr() (string, error) {
	if c.ApiEnabled == "true" {
		if c.ApiPort == "" {
			return "", fmt.Errorf("SALDO_API_PORT is required when SALDO_API_ENABLED=true")
		}
		return ":" + c.ApiPort, nil
	}
	return "", fmt.Errorf("HTTP API is disabled (SALDO_API_ENABLED != true)")
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var intVal int
	if _, err := fmt.Sscanf(val, "%d", &intVal); err != nil {
		return defaultVal
	}
	return intVal
}
