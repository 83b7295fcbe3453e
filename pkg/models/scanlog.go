package models

import "time"

// ScanLog records one scan event (barcode intake, cover match, worker
// ingestion) for analytics. Extra holds free-form context as JSON.
type ScanLog struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	ISBN      string         `json:"isbn,omitempty"`
	Status    string         `json:"status"` // success, error, pending, not_found
	Message   string         `json:"message,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}
