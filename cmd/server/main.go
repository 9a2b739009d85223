package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"AfricaScraper/internal/app"
	"AfricaScraper/internal/server"
	"AfricaScraper/pkg/config"
	"AfricaScraper/utils"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "config.yml", "Path to the YAML config file")
	level := flag.String("log-level", "info", "Log level")
	flag.Parse()

	utils.InitLogger("dashboard", *level)
	if os.Getenv("ENV") != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise application")
	}
	defer a.Close()

	if err := server.New(a).Run(ctx); err != nil {
		log.Error().Err(err).Msg("dashboard stopped with error")
	}

	log.Info().Msg("waiting for running scrapes to persist")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("runs still in flight at exit")
	}
}
