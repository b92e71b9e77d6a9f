// Command seed loads the demo catalog into a running commercecore server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/utafrali/commercecore/internal/seed"
	"github.com/utafrali/commercecore/pkg/config"
	"github.com/utafrali/commercecore/pkg/httpclient"
	"github.com/utafrali/commercecore/pkg/logger"
)

type seedConfig struct {
	APIURL   string        `env:"SEED_API_URL" envDefault:"http://localhost:8080"`
	Timeout  time.Duration `env:"SEED_TIMEOUT" envDefault:"2m"`
	LogLevel string        `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	var cfg seedConfig
	if err := config.Load(&cfg); err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.NewWithFormat("commercecore-seed", cfg.LogLevel, logger.FormatText, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, cfg.Timeout)
	defer cancelTimeout()

	client := httpclient.New(httpclient.DefaultConfig())
	report, err := seed.New(client, cfg.APIURL, log).Run(ctx)
	if err != nil {
		log.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("seeding complete",
		slog.Int("categories", report.Categories),
		slog.Int("products", report.Products),
		slog.Int("variants", report.Variants),
		slog.Int("published", report.Published),
	)
}
