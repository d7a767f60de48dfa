package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Auth       AuthConfig
	QR         QRConfig
	Migrations MigrationsConfig
	LogLevel   string
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	ConnectRetry int
}

type RedisConfig struct {
	Addr    string
	HoldTTL time.Duration
	Enabled bool
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	TicketIssued   string
	SessionUpdated string
	ChannelBooked  string
}

type AuthConfig struct {
	Issuer    string
	ClientID  string
	JWTSecret string
}

type QRConfig struct {
	Secret string
}

type MigrationsConfig struct {
	Dir  string
	Auto bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", ":8080"),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "careplus"),
			Password:     getEnv("DB_PASSWORD", "careplus"),
			Database:     getEnv("DB_NAME", "careplus"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			ConnectRetry: getEnvInt("DB_CONNECT_RETRIES", 10),
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			HoldTTL: getEnvDuration("OPD_ISSUE_HOLD_TTL", 10*time.Second),
			Enabled: getEnvBool("REDIS_ENABLED", true),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Topics: TopicConfig{
				TicketIssued:   getEnv("KAFKA_TOPIC_TICKET_ISSUED", "careplus.opd.ticket.issued"),
				SessionUpdated: getEnv("KAFKA_TOPIC_SESSION_UPDATED", "careplus.opd.session.updated"),
				ChannelBooked:  getEnv("KAFKA_TOPIC_CHANNEL_BOOKED", "careplus.channel.booked"),
			},
		},
		Auth: AuthConfig{
			Issuer:    getEnv("OIDC_ISSUER", ""),
			ClientID:  getEnv("OIDC_CLIENT_ID", ""),
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		QR: QRConfig{
			Secret: getEnv("QR_SECRET", "careplus-qr-secret-key-change-me"),
		},
		Migrations: MigrationsConfig{
			Dir:  getEnv("MIGRATIONS_DIR", "migrations"),
			Auto: getEnvBool("AUTO_MIGRATE", true),
		},
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}
}

// DSN builds the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

func (k KafkaConfig) AllTopics() []string {
	return []string{k.Topics.TicketIssued, k.Topics.SessionUpdated, k.Topics.ChannelBooked}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
