package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ridizi/internal/catalog"
	"ridizi/internal/cover"
	"ridizi/internal/embedding"
	"ridizi/internal/queue"
	"ridizi/internal/resolver"
	"ridizi/internal/scanlog"
	"ridizi/internal/vindex"
	"ridizi/internal/worker"
	"ridizi/pkg/database"
	"ridizi/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	cfg := utils.LoadConfig()
	db := database.MustOpen(cfg.DBPath)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	embedder := embedding.NewClient(cfg.EmbedderURL, cfg.EmbedDim)

	ingest := &worker.Worker{
		Queue:             queue.NewRepo(db),
		Catalog:           catalog.NewRepo(db),
		Resolver:          resolver.NewChain(resolver.NewGoogleBooks(), resolver.NewOpenLibrary()),
		Covers:            cover.NewResolver(cfg.CoversDir),
		Index:             vindex.NewStore(cfg.DataDir, cfg.CoversDir, embedder),
		Scans:             scanlog.NewRepo(db),
		Interval:          cfg.PollInterval,
		AllowMissingCover: cfg.AllowMissingCover,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Println("worker started - monitoring pending books")
	ingest.Run(ctx)
}
