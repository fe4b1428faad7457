// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"github.com/Shivanand-hulikatti/talk-lectures/internal/auth"
	"github.com/Shivanand-hulikatti/talk-lectures/internal/config"
	"github.com/Shivanand-hulikatti/talk-lectures/internal/database"
	"github.com/Shivanand-hulikatti/talk-lectures/internal/handler"
	"github.com/Shivanand-hulikatti/talk-lectures/internal/repository"
	"github.com/Shivanand-hulikatti/talk-lectures/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ── 1. Open the store ────────────────────────────────────────────────
	store, closeStore, err := openStore(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer closeStore()

	// ── 2. Wire up layers ────────────────────────────────────────────────
	authn, err := auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer, nil)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	requestSvc := service.NewRequestService(store, cfg.Location(), nil)
	lectureSvc := service.NewLectureService(store, cfg.Location(), nil)
	router := handler.NewRouter(
		handler.NewRequestHandler(requestSvc),
		handler.NewLectureHandler(lectureSvc),
		authn,
	)

	// ── 3. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		log.Printf("✓ Server listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		return
	}
	log.Println("server stopped")
}

// openStore connects to the configured driver and applies the schema.
func openStore(ctx context.Context, cfg config.DB) (service.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("✓ Opened SQLite at %s", cfg.SQLitePath)
		store := repository.NewSQLiteStore(db)
		return store, func() { _ = store.Close() }, nil
	default:
		pool, err := database.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Println("✓ Connected to PostgreSQL")
		return repository.NewPostgresStore(pool, cfg.LockTimeout), pool.Close, nil
	}
}
