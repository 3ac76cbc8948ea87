package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port         string
	DatabasePath string
	LogLevel     string

	CoinGeckoBaseURL  string
	PriceFetchTimeout time.Duration
	PriceCacheTTL     time.Duration
	PriceCacheCleanup time.Duration

	// "mock" is the only fully implemented provider for now.
	PurchaseProvider string

	// "log" or "expo"
	Notifier      string
	ExpoPushURL   string
	ExpoPushToken string

	AllowedOrigin string
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	Cfg = &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./portfoly.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		CoinGeckoBaseURL:  getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
		PriceFetchTimeout: getEnvAsDuration("PRICE_FETCH_TIMEOUT", 20*time.Second),
		PriceCacheTTL:     getEnvAsDuration("PRICE_CACHE_TTL", 1*time.Minute),
		PriceCacheCleanup: getEnvAsDuration("PRICE_CACHE_CLEANUP", 5*time.Minute),

		PurchaseProvider: getEnv("PURCHASE_PROVIDER", "mock"),

		Notifier:      getEnv("NOTIFIER", "log"),
		ExpoPushURL:   getEnv("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send"),
		ExpoPushToken: getEnv("EXPO_PUSH_TOKEN", ""),

		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, PurchaseProvider=%s, Notifier=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.PurchaseProvider, Cfg.Notifier)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Duration value for %s not set or empty, using default: %s", key, fallback.String())
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
