package scanlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
)

// Repo records scan events (barcode intake, cover matches, worker results)
// for the analytics layer to aggregate. Logging must never break the
// operation being logged, so Record swallows its own failures.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Record writes one scan event. ISBN may be empty for failed scans.
func (r *Repo) Record(ctx context.Context, isbn, status, message string, extra map[string]any) {
	var extraJSON any
	if extra != nil {
		data, err := json.Marshal(extra)
		if err != nil {
			log.Printf("[scanlog] marshal extra: %v", err)
		} else {
			extraJSON = string(data)
		}
	}

	var isbnVal any
	if isbn != "" {
		isbnVal = isbn
	}

	if _, err := r.DB.ExecContext(ctx, `
		INSERT INTO scan_logs (isbn, status, message, extra) VALUES (?, ?, ?, ?)
	`, isbnVal, status, message, extraJSON); err != nil {
		log.Printf("[scanlog] record failed: %v", err)
	}
}
