package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"ridizi/internal/catalog"
	"ridizi/internal/embedding"
	"ridizi/internal/reconcile"
	"ridizi/internal/vindex"
	"ridizi/pkg/database"
	"ridizi/pkg/utils"
)

// Repairs drift between the catalog, the cover directory, the name manifest
// and the vector index. Run it while ingestion is stopped.
func main() {
	_ = godotenv.Load()

	cfg := utils.LoadConfig()
	db := database.MustOpen(cfg.DBPath)
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	embedder := embedding.NewClient(cfg.EmbedderURL, cfg.EmbedDim)

	r := &reconcile.Reconciler{
		Catalog:   catalog.NewRepo(db),
		Index:     vindex.NewStore(cfg.DataDir, cfg.CoversDir, embedder),
		CoversDir: cfg.CoversDir,
	}

	report, err := r.Run(context.Background())
	if err != nil {
		log.Fatalf("reconcile failed: %v", err)
	}

	log.Printf("reconcile done: removed_db=%d removed_covers=%d removed_manifest=%d rebuilt=%d",
		report.RemovedDB, report.RemovedCovers, report.RemovedManifest, report.Rebuilt)
}
