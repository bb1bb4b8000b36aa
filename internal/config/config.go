package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BrowserModeLocal  = "local"
	BrowserModeDocker = "docker"

	LockBackendFile  = "file"
	LockBackendRedis = "redis"
)

// Config holds everything read once at start-up
type Config struct {
	TelegramToken string
	AllowedUsers  []string
	DefaultYear   int

	BaseURL      string
	CurrencyCode string
	HTTPAddr     string

	BrowserMode  string
	ChromePath   string
	BrowserImage string
	UserAgent    string
	Headless     bool

	PageLoadTimeout time.Duration
	SettleDelay     time.Duration
	MaxRetries      int
	MaxOffers       int
	ScrapeDeadline  time.Duration

	LockBackend string
	LockPath    string
	RedisAddr   string
	LockKey     string

	ProfileDir     string
	ProfileMaxAge  time.Duration
	SweepSchedule  string
	SnapshotDir    string
	RateLimitHour  int
	RateLimitBurst int
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Load reads an optional .env file and then the process environment
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only
func FromEnv() *Config {
	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		AllowedUsers:  splitList(os.Getenv("ALLOWED_TELEGRAM_USERS")),
		DefaultYear:   getEnvInt("DEFAULT_YEAR", time.Now().Year()),

		BaseURL:      getEnv("SMILES_BASE_URL", "https://www.smiles.com.ar/emission"),
		CurrencyCode: getEnv("CURRENCY_CODE", "ARS"),
		HTTPAddr:     getEnvAllowEmpty("HTTP_ADDR", ":8080"),

		BrowserMode:  strings.ToLower(getEnv("BROWSER_MODE", BrowserModeLocal)),
		ChromePath:   os.Getenv("CHROME_PATH"),
		BrowserImage: getEnv("BROWSER_IMAGE", "browserless/chrome:latest"),
		UserAgent:    getEnv("USER_AGENT", defaultUserAgent),
		Headless:     getEnvBool("HEADLESS", true),

		PageLoadTimeout: getEnvDuration("PAGE_LOAD_TIMEOUT", 30*time.Second),
		SettleDelay:     getEnvDuration("SETTLE_DELAY", 3*time.Second),
		MaxRetries:      getEnvInt("MAX_RETRIES", 2),
		MaxOffers:       getEnvInt("MAX_OFFERS", 5),
		ScrapeDeadline:  getEnvDuration("SCRAPE_DEADLINE", 0),

		LockBackend: strings.ToLower(getEnv("LOCK_BACKEND", LockBackendFile)),
		LockPath:    getEnv("LOCK_PATH", "./scrape.lock"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		LockKey:     getEnv("LOCK_KEY", "smiles:scrape-lock"),

		ProfileDir:     getEnv("PROFILE_DIR", filepath.Join(os.TempDir(), "smiles-profiles")),
		ProfileMaxAge:  getEnvDuration("PROFILE_MAX_AGE", time.Hour),
		SweepSchedule:  getEnvAllowEmpty("SWEEP_SCHEDULE", "@every 30m"),
		SnapshotDir:    os.Getenv("SNAPSHOT_DIR"),
		RateLimitHour:  getEnvInt("RATE_LIMIT_PER_HOUR", 30),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 3),
	}

	if cfg.BrowserMode != BrowserModeLocal && cfg.BrowserMode != BrowserModeDocker {
		log.Printf("⚠️ Unknown BROWSER_MODE %q, using %s", cfg.BrowserMode, BrowserModeLocal)
		cfg.BrowserMode = BrowserModeLocal
	}
	if cfg.LockBackend != LockBackendFile && cfg.LockBackend != LockBackendRedis {
		log.Printf("⚠️ Unknown LOCK_BACKEND %q, using %s", cfg.LockBackend, LockBackendFile)
		cfg.LockBackend = LockBackendFile
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxOffers <= 0 {
		cfg.MaxOffers = 5
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvAllowEmpty lets an explicitly empty variable disable a feature
func getEnvAllowEmpty(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
