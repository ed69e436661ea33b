package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/RaMarWilson1/bookbetter/internal/repository"
	"github.com/RaMarWilson1/bookbetter/internal/seed"
	"github.com/RaMarWilson1/bookbetter/pkg/config"
	"github.com/RaMarWilson1/bookbetter/pkg/database"
	"github.com/RaMarWilson1/bookbetter/pkg/logger"
)

func main() {
	file := flag.String("file", "seed.yaml", "seed document to load")
	timeout := flag.Duration("timeout", time.Minute, "overall load timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	doc, err := seed.LoadFile(*file)
	if err != nil {
		logr.Fatal("invalid seed file", zap.String("file", *file), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	loader := seed.NewLoader(db,
		repository.NewTenantRepository(db),
		repository.NewServiceRepository(db),
		repository.NewAvailabilityRepository(db),
		logr,
	)
	if _, err := loader.Load(ctx, doc); err != nil {
		logr.Fatal("seed failed", zap.Error(err))
	}
}
