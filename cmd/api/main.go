package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/maksimzayats/fastdjango/internal/auth"
	"github.com/maksimzayats/fastdjango/internal/config"
	"github.com/maksimzayats/fastdjango/internal/db"
	httphandler "github.com/maksimzayats/fastdjango/internal/http"
	"github.com/maksimzayats/fastdjango/internal/http/handlers"
	"github.com/maksimzayats/fastdjango/internal/middleware"
	"github.com/maksimzayats/fastdjango/internal/ratelimit"
	"github.com/maksimzayats/fastdjango/internal/repo"
	"github.com/maksimzayats/fastdjango/internal/request"
	"github.com/pressly/goose/v3"

	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if err := runMigrations(database); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient, err := db.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to open redis: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	userRepo := repo.NewUserRepo(database)
	refreshRepo := repo.NewRefreshRepo(database)

	// Services
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL)
	userService := auth.NewUserService(userRepo)
	sessionService := auth.NewRefreshSessionService(refreshRepo, cfg.RefreshTokenTTL)

	// Throttling
	requestInfo := request.NewInfo(cfg.TrustedProxies)
	limiter := ratelimit.NewRedisLimiter(redisClient, ratelimit.PerMinute(cfg.ThrottlePerMin))
	throttler := middleware.NewThrottler(limiter, requestInfo, cfg.ThrottleFailOpen)

	// Handlers and router
	userHandler := handlers.NewUserHandler(userService, sessionService, jwtService, requestInfo)
	router := httphandler.NewRouter(userHandler, jwtService, userRepo, throttler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the repo root)")
	}

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
