package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/reserviq/reserviq/internal/adapter/fsm"
	"github.com/reserviq/reserviq/internal/adapter/otel"
	"github.com/reserviq/reserviq/internal/adapter/river"
	"github.com/reserviq/reserviq/internal/adapter/sqlite"
	"github.com/reserviq/reserviq/internal/app"
	"github.com/reserviq/reserviq/internal/clock"

	handler "github.com/reserviq/reserviq/internal/adapter/http"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("reserviq: %v", err)
	}
}

func run() error {
	port := envOrDefault("PORT", "8080")
	dbPath := envOrDefault("DATABASE_PATH", "reserviq.db")
	graceMinutes := envIntOrDefault("GRACE_MINUTES", 15)
	sweepSeconds := envIntOrDefault("SWEEP_INTERVAL_SECONDS", 60)

	ctx := context.Background()

	// --- Observability ---
	providers, err := otel.Setup(ctx, otel.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otel.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	repo, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	payments := sqlite.NewPaymentGate(db)
	publisher := river.NewPublisher()

	// --- Application ---
	svc := app.NewLifecycleService(
		otel.NewTracingRepository(repo),
		otel.NewTracingPublisher(publisher),
		fsm.New(),
		payments,
		clock.NewSystem(),
		app.WithGracePeriod(time.Duration(graceMinutes)*time.Minute),
	)

	// --- Background jobs ---
	riverClient, err := river.Setup(ctx, db, svc, time.Duration(sweepSeconds)*time.Second)
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	publisher.Bind(riverClient)

	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("river start: %w", err)
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(otelchi.Middleware("reserviq", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("reserviq", "0.1.0"))
	handler.Register(api, svc)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("reserviq listening on :%s", port)
		log.Printf("API docs: http://localhost:%s/docs", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	case <-done:
	}
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := riverClient.Stop(shutdownCtx); err != nil {
		log.Printf("river stop: %v", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Println("stopped")
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
