package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Settings struct {
	Port    string
	GinMode string

	TelegramToken  string
	WebhookSecret  string
	PublicBaseURL  string
	Store          string
	MongoDB        string
	VertexProject  string
	VertexLocation string
	VertexModel    string
	GCSBucket      string
	STTLanguage    string
	WSOrigin       string
	JWTSecret      string
	JWTIssuer      string

	PlanWorkers  int
	CoachModeTTL time.Duration
	CoachHistory int
	LockTTL      time.Duration
}

// Load reads Settings from the environment. Connection strings for
// Postgres, Redis and Mongo are read by their Init functions.
func Load() (Settings, error) {
	s := Settings{
		Port:           env("PORT", "8080"),
		GinMode:        os.Getenv("GIN_MODE"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		WebhookSecret:  os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		PublicBaseURL:  strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		Store:          strings.ToLower(env("STORE", StorePostgres)),
		MongoDB:        env("MONGO_DB", "nutricoach"),
		VertexProject:  os.Getenv("VERTEX_PROJECT"),
		VertexLocation: env("VERTEX_LOCATION", "us-central1"),
		VertexModel:    env("VERTEX_MODEL", "gemini-1.5-flash"),
		GCSBucket:      os.Getenv("GCS_BUCKET"),
		STTLanguage:    env("STT_LANGUAGE", "es-ES"),
		WSOrigin:       os.Getenv("WS_ALLOWED_ORIGIN"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTIssuer:      os.Getenv("JWT_ISSUER"),
	}

	var err error
	if s.PlanWorkers, err = envInt("PLAN_WORKERS", 2); err != nil {
		return s, err
	}
	if s.CoachHistory, err = envInt("COACH_HISTORY", 10); err != nil {
		return s, err
	}
	if s.CoachModeTTL, err = envDuration("COACH_MODE_TTL", 30*time.Minute); err != nil {
		return s, err
	}
	if s.LockTTL, err = envDuration("LOCK_TTL", 10*time.Second); err != nil {
		return s, err
	}

	if s.Store != StorePostgres && s.Store != StoreMemory {
		return s, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, s.Store)
	}
	return s, nil
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}
