package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"github.com/shehryarbajwa/smiles-flights/internal/api"
	"github.com/shehryarbajwa/smiles-flights/internal/bot"
	"github.com/shehryarbajwa/smiles-flights/internal/browser"
	"github.com/shehryarbajwa/smiles-flights/internal/config"
	"github.com/shehryarbajwa/smiles-flights/internal/coordinator"
	"github.com/shehryarbajwa/smiles-flights/internal/extract"
	"github.com/shehryarbajwa/smiles-flights/internal/lock"
	"github.com/shehryarbajwa/smiles-flights/internal/profile"
	"github.com/shehryarbajwa/smiles-flights/internal/proxy"
	"github.com/shehryarbajwa/smiles-flights/internal/ratelimit"
	"github.com/shehryarbajwa/smiles-flights/internal/search"
	"github.com/shehryarbajwa/smiles-flights/internal/snapshot"
)

func main() {
	cfg := config.Load()

	log.Println("Starting Smiles flights bot...")

	if cfg.TelegramToken == "" && cfg.HTTPAddr == "" {
		log.Fatal("Nothing to serve: set TELEGRAM_BOT_TOKEN or HTTP_ADDR")
	}

	// Temporary browser profiles, swept at start, end and on a schedule
	profiles, err := profile.NewManager(cfg.ProfileDir)
	if err != nil {
		log.Fatalf("Failed to create profile manager: %v", err)
	}
	if n, err := profiles.Sweep(cfg.ProfileMaxAge, ""); err != nil {
		log.Printf("⚠️ Initial profile sweep failed: %v", err)
	} else {
		log.Printf("✓ Profile dir %s ready (%d stale profiles removed)", profiles.Root(), n)
	}

	// Browser backend
	launcher, closeLauncher := newLauncher(cfg)
	defer closeLauncher()

	browserMgr := browser.NewManager(launcher, profiles)
	log.Printf("✓ Browser session manager initialized (%s backend)", launcher.Name())

	if cfg.SweepSchedule != "" {
		if err := profiles.StartSweeper(cfg.SweepSchedule, cfg.ProfileMaxAge, browserMgr.ProfileDir); err != nil {
			log.Fatalf("Failed to start profile sweeper: %v", err)
		}
		log.Printf("✓ Profile sweeper scheduled (%s)", cfg.SweepSchedule)
	}

	// Page extraction
	extractor := extract.NewExtractor(browserMgr, extract.NewChromeRenderer(cfg.PageLoadTimeout, cfg.SettleDelay), cfg.MaxOffers)
	if cfg.SnapshotDir != "" {
		store, err := snapshot.NewStore(cfg.SnapshotDir)
		if err != nil {
			log.Fatalf("Failed to create snapshot store: %v", err)
		}
		extractor.WithSnapshots(store)
		log.Printf("✓ Page snapshots kept in %s", cfg.SnapshotDir)
	}

	// Single-flight lock
	marker, closeMarker := newMarker(cfg)
	defer closeMarker()
	guard := lock.NewGuard(marker)

	searches := coordinator.New(
		search.NewNormalizer(cfg.DefaultYear),
		search.NewURLBuilder(cfg.BaseURL, cfg.CurrencyCode),
		guard,
		extractor,
		coordinator.Options{MaxRetries: cfg.MaxRetries, Deadline: cfg.ScrapeDeadline},
	).WithBrowser(browserMgr)
	log.Printf("✓ Search coordinator initialized (retries: %d, offers: %d)", cfg.MaxRetries, cfg.MaxOffers)

	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitHour, cfg.RateLimitBurst)
	log.Printf("✓ Rate limiter initialized (%d req/hour, burst %d)", cfg.RateLimitHour, cfg.RateLimitBurst)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// HTTP API
	var srv *http.Server
	if cfg.HTTPAddr != "" {
		router := api.NewHandler(searches, browserMgr).SetupRoutes(proxy.NewServer(browserMgr), rateLimiter)

		// Searches can outlive the usual write timeout
		writeTimeout := 5 * time.Minute
		if cfg.ScrapeDeadline > 0 {
			writeTimeout = cfg.ScrapeDeadline + 30*time.Second
		}

		srv = &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			log.Printf("🚀 HTTP API listening on %s", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Server error: %v", err)
			}
		}()
	}

	// Telegram bot
	var botAPI *tgbotapi.BotAPI
	botDone := make(chan struct{})
	if cfg.TelegramToken != "" {
		botAPI, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			log.Fatalf("Failed to connect to Telegram: %v", err)
		}
		log.Printf("✓ Authorized on Telegram as @%s", botAPI.Self.UserName)

		updateCfg := tgbotapi.NewUpdate(0)
		updateCfg.Timeout = 60
		updates := botAPI.GetUpdatesChan(updateCfg)

		chatBot := bot.New(botAPI, searches, rateLimiter, cfg.AllowedUsers)
		go func() {
			defer close(botDone)
			chatBot.Run(ctx, updates)
		}()
	} else {
		log.Println("⚠️ TELEGRAM_BOT_TOKEN not set, running HTTP API only")
		close(botDone)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("⏳ Shutting down gracefully...")

	if botAPI != nil {
		botAPI.StopReceivingUpdates()
	}
	stop()
	<-botDone

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️ HTTP server forced to shutdown: %v", err)
		}
		cancel()
	}

	profiles.Stop()
	browserMgr.Shutdown()

	if n, err := profiles.Sweep(0, ""); err != nil {
		log.Printf("⚠️ Final profile sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("🧹 Removed %d leftover profiles", n)
	}

	log.Println("✅ Stopped cleanly")
}

// newLauncher picks the browser backend. The returned func releases it.
func newLauncher(cfg *config.Config) (browser.Launcher, func()) {
	opts := browser.Options{
		Headless:   cfg.Headless,
		UserAgent:  cfg.UserAgent,
		ChromePath: cfg.ChromePath,
		Image:      cfg.BrowserImage,
	}

	if cfg.BrowserMode != config.BrowserModeDocker {
		return browser.NewLocalLauncher(opts), func() {}
	}

	docker, err := browser.NewDockerLauncher(opts)
	if err != nil {
		log.Fatalf("Failed to create docker launcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.Println("⏳ Ensuring Chrome image is available...")
	if err := docker.EnsureImage(ctx); err != nil {
		log.Fatalf("Failed to ensure image: %v", err)
	}
	log.Printf("✓ Chrome image %s ready", opts.Image)

	return docker, func() {
		if err := docker.Close(); err != nil {
			log.Printf("⚠️ Failed to close docker client: %v", err)
		}
	}
}

// newMarker picks where the busy marker lives. The returned func releases it.
func newMarker(cfg *config.Config) (lock.Marker, func()) {
	if cfg.LockBackend != config.LockBackendRedis {
		marker, err := lock.NewFileMarker(cfg.LockPath)
		if err != nil {
			log.Fatalf("Failed to create lock marker: %v", err)
		}
		log.Printf("✓ Scrape lock at %s", marker.Path())
		return marker, func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
	}
	log.Printf("✓ Scrape lock in Redis key %s at %s", cfg.LockKey, cfg.RedisAddr)

	return lock.NewRedisMarker(client, cfg.LockKey), func() {
		if err := client.Close(); err != nil {
			log.Printf("⚠️ Failed to close Redis client: %v", err)
		}
	}
}
