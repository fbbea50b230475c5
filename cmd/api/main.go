package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/taiwoajasa245/verse-collections-api/internal/database"
	"github.com/taiwoajasa245/verse-collections-api/internal/server"
	"github.com/taiwoajasa245/verse-collections-api/pkg/config"
	"github.com/taiwoajasa245/verse-collections-api/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logg, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logg.Sync()

	ctx := context.Background()

	db, err := database.New(ctx, database.Options{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Schema:   cfg.DBSchema,
	})
	if err != nil {
		logg.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logg.Fatal("migrations failed", zap.Error(err))
	}

	srv, err := server.NewServer(db, cfg, logg)
	if err != nil {
		logg.Fatal("server setup failed", zap.Error(err))
	}
	defer srv.Close()

	httpServer := srv.HTTPServer()
	go func() {
		logg.Info("verse collections api listening", zap.String("addr", httpServer.Addr), zap.String("env", cfg.AppEnv))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logg.Error("shutdown error", zap.Error(err))
	}
	logg.Info("server stopped")
}
