package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

var (
	DatabaseURL = os.Getenv("DATABASE_URL")
	RedisAddr   = os.Getenv("REDIS_ADDR")
	KafkaBroker = os.Getenv("KAFKA_BROKER")

	ClassifierURL  = os.Getenv("CLASSIFIER_URL")
	AgeVerifierURL = os.Getenv("AGE_VERIFIER_URL")
	DeepfakeURL    = os.Getenv("DEEPFAKE_URL")
	ConsentURL     = os.Getenv("CONSENT_URL")
	CopyrightURL   = os.Getenv("COPYRIGHT_URL")
	PIIScannerURL  = os.Getenv("PII_SCANNER_URL")

	PolicyLevel = getEnv("POLICY_LEVEL", "moderate")
	ListenAddr  = getEnv("LISTEN_ADDR", ":8080")

	CollectorTimeout = getDuration("COLLECTOR_TIMEOUT", 200*time.Millisecond)
	LeaseDuration    = getDuration("REVIEW_LEASE_DURATION", 15*time.Minute)
)

// Load reads .env if present and re-reads every variable, so a local .env
// behaves the same as the real environment. Must run before anything reads
// the package vars.
func Load() {
	if err := godotenv.Load(); err != nil {
		return
	}
	DatabaseURL = os.Getenv("DATABASE_URL")
	RedisAddr = os.Getenv("REDIS_ADDR")
	KafkaBroker = os.Getenv("KAFKA_BROKER")
	ClassifierURL = os.Getenv("CLASSIFIER_URL")
	AgeVerifierURL = os.Getenv("AGE_VERIFIER_URL")
	DeepfakeURL = os.Getenv("DEEPFAKE_URL")
	ConsentURL = os.Getenv("CONSENT_URL")
	CopyrightURL = os.Getenv("COPYRIGHT_URL")
	PIIScannerURL = os.Getenv("PII_SCANNER_URL")
	PolicyLevel = getEnv("POLICY_LEVEL", "moderate")
	ListenAddr = getEnv("LISTEN_ADDR", ":8080")
	CollectorTimeout = getDuration("COLLECTOR_TIMEOUT", 200*time.Millisecond)
	LeaseDuration = getDuration("REVIEW_LEASE_DURATION", 15*time.Minute)
}

// Validate checks the variables the service cannot run without. Collector
// URLs are deliberately not required: a missing URL puts that collector in
// degraded mode instead of blocking startup.
func Validate() error {
	if DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if KafkaBroker == "" {
		return fmt.Errorf("KAFKA_BROKER is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
