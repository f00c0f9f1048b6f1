package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/adapters/cache"
	adapterHTTP "github.com/comitanigiacomo/ritmo-streak-engine/internal/adapters/handler/http"
	"github.com/comitanigiacomo/ritmo-streak-engine/internal/adapters/repository"
	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/services"
	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/workers"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	startTime := time.Now()

	_ = godotenv.Load()

	dbUser := os.Getenv("DB_USER")
	dbPass := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	serverPort := getEnv("PORT", "8080")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPass, dbHost, dbPort, dbName)

	log.Println("Connecting to database...")

	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		log.Fatalf("Critical: Failed to connect to database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := repository.Bootstrap(context.Background(), db); err != nil {
		log.Fatalf("Critical: Failed to bootstrap schema: %v", err)
	}

	log.Println("Database connected successfully.")

	var streakCache domain.StreakCache

	rdb, err := cache.NewRedisClient(cache.RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err != nil {
		log.Printf("Redis unavailable, falling back to in-memory cache: %v", err)
		streakCache = cache.NewMemoryStreakCache(cache.DefaultStreakTTL)
		rdb = nil
	} else {
		streakCache = cache.NewRedisStreakCache(rdb, cache.DefaultStreakTTL)
	}

	taskRepo := repository.NewPostgresTaskRepository(db)
	logRepo := repository.NewPostgresLogRepository(db)
	streakRepo := repository.NewPostgresStreakRepository(db)
	transactor := repository.NewSQLTransactor(db)

	streakService := services.NewStreakService(taskRepo, logRepo, streakRepo, transactor, streakCache)
	summaryService := services.NewSummaryService(taskRepo, logRepo)

	worker := workers.NewSweepWorker(streakService, time.Hour)

	taskService := services.NewTaskService(taskRepo, worker)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	worker.Start(workerCtx)

	// Startup consistency pass: the cache is droppable and the stored
	// snapshots may be stale after downtime.
	go func() {
		ctx, cancel := context.WithTimeout(workerCtx, 2*time.Minute)
		defer cancel()

		streakService.InvalidateAllCache(ctx)
		if err := streakService.RecalculateAllStreaks(ctx, time.Now().UTC()); err != nil {
			log.Printf("Startup streak rebuild failed: %v", err)
		}
	}()

	router := adapterHTTP.NewRouter(adapterHTTP.RouterDependencies{
		TaskHandler:    adapterHTTP.NewTaskHandler(taskService),
		StreakHandler:  adapterHTTP.NewStreakHandler(streakService),
		SummaryHandler: adapterHTTP.NewSummaryHandler(summaryService),
		DB:             db,
		Redis:          rdb,
		StartTime:      startTime,
	})

	srv := &http.Server{
		Addr:         ":" + serverPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Ritmo Streak Engine running on http://localhost:%s", serverPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Critical server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Stop signal received. Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Forced shutdown error:", err)
	}

	log.Println("Server stopped gracefully.")
}
