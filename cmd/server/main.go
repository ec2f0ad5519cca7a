// Package main is the entry point for the read-only query API over the
// entity store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/cartera/internal/config"
	"github.com/aristath/cartera/internal/database"
	"github.com/aristath/cartera/internal/modules/holdings"
	"github.com/aristath/cartera/internal/modules/portfolio"
	"github.com/aristath/cartera/internal/server"
	"github.com/aristath/cartera/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	db, err := database.New(database.Config{Path: cfg.DatabasePath, Name: "cartera"})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database schema")
	}

	service := portfolio.NewService(db, log)
	engine := holdings.NewEngine(service, log)

	srv := server.New(server.Config{
		Log:     log,
		Service: service,
		Engine:  engine,
		Port:    cfg.Port,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}
}
