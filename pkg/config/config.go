package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	DatabaseURL string

	GoogleClientID     string
	GoogleClientSecret string

	// Gmail push notifications (optional)
	GoogleProjectID   string
	GooglePubSubTopic string
	GoogleCredentials string

	// Pool of interchangeable Gemini API keys, rotated by the extractor
	GeminiAPIKeys []string
	GeminiModel   string

	// Chroma Cloud (optional; relevance filtering is skipped without it)
	ChromaAPIKey   string
	ChromaTenant   string
	ChromaDatabase string

	SyncInterval            time.Duration
	SyncMaxResults          int
	ExtractChunkSize        int
	CalendarReminderMinutes int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	syncInterval := time.Hour
	if v := os.Getenv("SYNC_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			syncInterval = parsed
		}
	}

	var geminiKeys []string
	for _, k := range strings.Split(os.Getenv("GEMINI_API_KEYS"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			geminiKeys = append(geminiKeys, k)
		}
	}
	// Single-key env kept for older deployments
	if len(geminiKeys) == 0 {
		if k := os.Getenv("GEMINI_API_KEY"); k != "" {
			geminiKeys = []string{k}
		}
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		DatabaseURL:        getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=eventscout port=5432 sslmode=disable"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleProjectID:    getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic:  getEnv("GOOGLE_PUBSUB_TOPIC", "gmail-updates"),
		GoogleCredentials:  getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		GeminiAPIKeys: geminiKeys,
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		ChromaAPIKey:   getEnv("CHROMA_API_KEY", ""),
		ChromaTenant:   getEnv("CHROMA_TENANT", ""),
		ChromaDatabase: getEnv("CHROMA_DATABASE", ""),

		SyncInterval:            syncInterval,
		SyncMaxResults:          getEnvInt("SYNC_MAX_RESULTS", 10),
		ExtractChunkSize:        getEnvInt("EXTRACT_CHUNK_SIZE", 10),
		CalendarReminderMinutes: getEnvInt("CALENDAR_EVENT_REMINDER_MINUTES", 60),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
