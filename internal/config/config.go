package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ProjectID    string
	StoreBackend string // "firestore" or "memory"
	HTTPAddr     string
	LogLevel     string
	RedisDSN     string

	EventWorkerCount int
	EventQueueSize   int

	// BibleGateway credentials; kept in-memory only, never log these.
	BibleGatewayUser string
	BibleGatewayPass string

	// IntakeKey guards the change-intake endpoint; empty disables the check.
	IntakeKey string

	CORSOrigins []string
}

func Load() (Config, error) {
	// best-effort; real deployments set env vars directly
	_ = godotenv.Load()

	cfg := Config{
		ProjectID:        os.Getenv("FIREBASE_PROJECT_ID"),
		StoreBackend:     getenvDefault("STORE_BACKEND", "firestore"),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
		RedisDSN:         getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		BibleGatewayUser: os.Getenv("BIBLEGATEWAY_USER"),
		BibleGatewayPass: os.Getenv("BIBLEGATEWAY_PASS"),
		IntakeKey:        os.Getenv("INTAKE_KEY"),
	}

	switch cfg.StoreBackend {
	case "firestore":
		if cfg.ProjectID == "" {
			return Config{}, errors.New("missing FIREBASE_PROJECT_ID")
		}
	case "memory":
		// local runs and tests only
	default:
		return Config{}, errors.New("STORE_BACKEND must be firestore or memory")
	}

	cfg.EventWorkerCount = getenvInt("EVENT_WORKER_COUNT", 5)
	cfg.EventQueueSize = getenvInt("EVENT_QUEUE_SIZE", 10000)

	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"*"}
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}
