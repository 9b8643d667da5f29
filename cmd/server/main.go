package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nzaccagnino/notesync/internal/db"
	"github.com/nzaccagnino/notesync/internal/server"
)

func main() {
	// Configuration from environment
	port := getEnv("PORT", "5689")
	dbPath := getEnv("DB_PATH", "/data/notes.db")
	publicURL := getEnv("PUBLIC_URL", "http://localhost:"+port)

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if level, err := log.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		logger.SetLevel(level)
	}

	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT", "300"))
	if err != nil {
		logger.Fatal("RATE_LIMIT must be a number", "err", err)
	}

	// Initialize database
	database, err := db.New(dbPath)
	if err != nil {
		logger.Fatal("failed to initialize database", "err", err)
	}
	defer database.Close()

	srv := server.New(server.Options{
		DB:        database,
		Logger:    logger,
		PublicURL: publicURL,
		RateLimit: rateLimit,
	})
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown.
		srv.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}()

	logger.Info("starting server", "addr", httpServer.Addr, "db", dbPath, "public_url", publicURL)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", "err", err)
	}
	logger.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
