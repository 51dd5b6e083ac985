package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	LogMode       string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	DBSSLMode     string
	JWTSecret     string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	TypingBackend    string
	TypingTimeoutSec int
	FanoutBackplane  string

	WSSendBuffer   int
	WSCommandRate  int
	WSCommandBurst int
	WSConnectLimit int
	CORSOrigins    []string
}

const (
	BackendMemory  = "memory"
	BackendRedis   = "redis"
	BackplaneLocal = "local"
)

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "debug"),
		LogMode:       getEnv("LOG_MODE", "development"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    getEnv("DB_PASSWORD", "postgres"),
		DBName:        getEnv("DB_NAME", "chatcore"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		JWTSecret:     getEnv("JWT_SECRET", "change-me"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		TypingBackend:    getEnv("TYPING_BACKEND", BackendMemory),
		TypingTimeoutSec: getEnvAsInt("TYPING_TIMEOUT_SEC", 5),
		FanoutBackplane:  getEnv("FANOUT_BACKPLANE", BackplaneLocal),

		WSSendBuffer:   getEnvAsInt("WS_SEND_BUFFER", 256),
		WSCommandRate:  getEnvAsInt("WS_COMMAND_RATE", 20),
		WSCommandBurst: getEnvAsInt("WS_COMMAND_BURST", 40),
		WSConnectLimit: getEnvAsInt("WS_CONNECT_LIMIT", 30),
		CORSOrigins:    getEnvAsList("CORS_ORIGINS", []string{"*"}),
	}
}

// UsesRedis reports whether any component is configured to need a redis client.
func (c *Config) UsesRedis() bool {
	return c.TypingBackend == BackendRedis || c.FanoutBackplane == BackendRedis
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
