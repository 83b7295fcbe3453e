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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"ridizi/internal/barcode"
	"ridizi/internal/catalog"
	"ridizi/internal/cover"
	"ridizi/internal/embedding"
	"ridizi/internal/match"
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

	catalogRepo := catalog.NewRepo(db)
	queueRepo := queue.NewRepo(db)
	scans := scanlog.NewRepo(db)

	embedder := embedding.NewClient(cfg.EmbedderURL, cfg.EmbedDim)
	store := vindex.NewStore(cfg.DataDir, cfg.CoversDir, embedder)

	ingest := &worker.Worker{
		Queue:             queueRepo,
		Catalog:           catalogRepo,
		Resolver:          resolver.NewChain(resolver.NewGoogleBooks(), resolver.NewOpenLibrary()),
		Covers:            cover.NewResolver(cfg.CoversDir),
		Index:             store,
		Scans:             scans,
		Interval:          cfg.PollInterval,
		AllowMissingCover: cfg.AllowMissingCover,
	}

	registry := worker.NewRegistry()
	registry.Register("ingest", ingest.Run)
	if !registry.Start("ingest") {
		log.Fatalf("failed to start ingest worker")
	}
	defer registry.StopAll()

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"db":       cfg.DBPath,
			"embedder": embedder.IsHealthy(),
		})
	})

	barcode.NewHandler(catalogRepo, queueRepo, scans).RegisterRoutes(router)

	matcher := &match.Matcher{Embedder: embedder, Index: store, Catalog: catalogRepo}
	match.NewHandler(matcher, scans, cfg.CoversDir).RegisterRoutes(router)

	worker.NewHandler(registry).RegisterRoutes(router.Group("/admin/api/workers"))

	httpSrv := &http.Server{
		Addr:    ":8080",
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Println("HTTP API server listening on :8080")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}

	registry.StopAll()
	log.Println("stopped")
}
