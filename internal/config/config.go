// Package config loads server settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Session SessionConfig
	WS      WSConfig
	Redis   RedisConfig
	NATS    NATSConfig

	// MirrorBuffer is the queue length in front of the mirror publishers.
	MirrorBuffer int
}

type ServerConfig struct {
	Port               string
	CORSAllowedOrigins []string
}

type LogConfig struct {
	Env   string // development or production
	Level string
}

type SessionConfig struct {
	Code             string
	InboxSize        int
	MaxTimerSeconds  int
	MaxNameLength    int
	MaxMessageLength int
}

type WSConfig struct {
	OutboxSize     int
	ReadLimitBytes int64
	WriteTimeout   time.Duration
	PingInterval   time.Duration
}

// RedisConfig enables the Redis mirror when Addr is set.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// NATSConfig enables the NATS mirror when URL is set.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

func (c Config) Production() bool { return c.Log.Env == "production" }

// Load reads configuration from the environment, with an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			CORSAllowedOrigins: splitTrim(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"), ","),
		},
		Log: LogConfig{
			Env:   strings.ToLower(getEnv("APP_ENV", "development")),
			Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
		Session: SessionConfig{
			Code:             getEnv("SESSION_CODE", "classroom"),
			InboxSize:        getEnvPositive("SESSION_INBOX_SIZE", 64),
			MaxTimerSeconds:  getEnvPositive("MAX_TIMER_SEC", 3600),
			MaxNameLength:    getEnvPositive("MAX_NAME_LENGTH", 40),
			MaxMessageLength: getEnvPositive("MAX_MESSAGE_LENGTH", 500),
		},
		WS: WSConfig{
			OutboxSize:     getEnvPositive("CLIENT_OUTBOX_SIZE", 32),
			ReadLimitBytes: int64(getEnvPositive("WS_READ_LIMIT_BYTES", 8192)),
			WriteTimeout:   time.Duration(getEnvPositive("WS_WRITE_TIMEOUT_SEC", 5)) * time.Second,
			PingInterval:   time.Duration(getEnvPositive("WS_PING_INTERVAL_SEC", 25)) * time.Second,
		},
		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", ""),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			ChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "pollsession:"),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", ""),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "pollsession"),
		},
		MirrorBuffer: getEnvPositive("MIRROR_BUFFER", 256),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvPositive is getEnvInt for sizes and durations, where zero or a
// negative value is as bad as garbage.
func getEnvPositive(key string, fallback int) int {
	if n := getEnvInt(key, fallback); n > 0 {
		return n
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
