package utils

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds everything the pipeline binaries read from the environment.
type Config struct {
	DBPath    string // sqlite database file
	DataDir   string // index artifacts live here
	CoversDir string // {isbn10}.jpg files

	PollInterval time.Duration // worker queue poll interval
	EmbedderURL  string        // CLIP sidecar base URL
	EmbedDim     int           // embedding vector dimension

	// AllowMissingCover controls what happens to a book whose cover download
	// failed: true keeps the catalog entry (the reconciler will drop it later
	// if no cover ever appears), false marks the queue entry stuck instead.
	AllowMissingCover bool
}

func LoadConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}

	dbPath := os.Getenv("RIDIZI_DB_PATH")
	if dbPath == "" {
		dbPath = filepath.Join(home, ".ridizi", "data.db")
	}

	dataDir := os.Getenv("RIDIZI_DATA_DIR")
	if dataDir == "" {
		dataDir = filepath.Join(home, ".ridizi", "data")
	}

	coversDir := os.Getenv("RIDIZI_COVERS_DIR")
	if coversDir == "" {
		coversDir = filepath.Join(dataDir, "covers")
	}

	embedderURL := os.Getenv("RIDIZI_EMBEDDER_URL")
	if embedderURL == "" {
		embedderURL = "http://localhost:8290"
	}

	return Config{
		DBPath:            dbPath,
		DataDir:           dataDir,
		CoversDir:         coversDir,
		PollInterval:      envDuration("RIDIZI_POLL_INTERVAL_SECONDS", 2*time.Second),
		EmbedderURL:       embedderURL,
		EmbedDim:          envInt("RIDIZI_EMBED_DIM", 512),
		AllowMissingCover: envBool("RIDIZI_ALLOW_MISSING_COVER", true),
	}
}

func envInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
