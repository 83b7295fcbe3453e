// Package worker drains the pending-book queue: for each scanned ISBN it
// resolves metadata, downloads a cover, appends the cover to the visual
// index and commits a catalog row. An entry that cannot be processed is
// flagged stuck and kept for operator review; one bad entry never blocks the
// rest of the queue.
package worker

import (
	"context"
	"errors"
	"log"
	"regexp"
	"time"

	"ridizi/internal/catalog"
	"ridizi/internal/cover"
	"ridizi/internal/queue"
	"ridizi/internal/resolver"
	"ridizi/internal/scanlog"
	"ridizi/internal/vindex"
	"ridizi/pkg/models"
)

// isbn10Pattern is the only shape an ISBN-10 may take as a storage key:
// nine digits plus a digit or X check character.
var isbn10Pattern = regexp.MustCompile(`^[0-9]{9}[0-9X]$`)

type Worker struct {
	Queue    *queue.Repo
	Catalog  *catalog.Repo
	Resolver *resolver.Chain
	Covers   *cover.Resolver
	Index    *vindex.Store
	Scans    *scanlog.Repo

	Interval time.Duration

	// AllowMissingCover keeps a book whose cover download failed; with it
	// off the entry is marked stuck instead.
	AllowMissingCover bool
}

// Run polls the queue at the configured interval until the context is
// canceled. No event push: the queue is fixed-interval poll by design.
func (w *Worker) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	log.Printf("[worker] started, polling every %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := w.DrainOnce(ctx); err != nil {
			log.Printf("[worker] drain cycle failed: %v", err)
		}
		select {
		case <-ctx.Done():
			log.Printf("[worker] stopped")
			return
		case <-ticker.C:
		}
	}
}

// DrainOnce processes every non-stuck queue entry once. Failures are
// contained per entry; only a failure to read the queue itself is returned.
func (w *Worker) DrainOnce(ctx context.Context) error {
	pendings, err := w.Queue.ListPending(ctx)
	if err != nil {
		return err
	}

	for _, entry := range pendings {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.processEntry(ctx, entry)
	}
	return nil
}

// processEntry walks one entry through the ingestion state machine:
// resolve metadata, fetch cover, index, persist, dequeue.
func (w *Worker) processEntry(ctx context.Context, entry models.PendingBook) {
	isbn13 := entry.ISBN
	log.Printf("[worker] processing ISBN13 %s", isbn13)

	meta, err := w.Resolver.Resolve(ctx, isbn13)
	if err != nil {
		log.Printf("[worker] metadata fetch failed for %s: %v", isbn13, err)
		w.markStuck(ctx, entry, "metadata fetch failed")
		return
	}

	// Without an ISBN-10 there is no cover filename and no index key.
	if meta.ISBN == "" {
		log.Printf("[worker] no ISBN-10 found for %s, marking stuck", isbn13)
		w.markStuck(ctx, entry, "no ISBN-10 in resolved metadata")
		return
	}
	// The ISBN-10 comes from an external API and becomes a filename; a
	// malformed one must never reach filepath.Join.
	if !isbn10Pattern.MatchString(meta.ISBN) {
		log.Printf("[worker] malformed ISBN-10 %q for %s, marking stuck", meta.ISBN, isbn13)
		w.markStuck(ctx, entry, "malformed ISBN-10 in resolved metadata")
		return
	}

	if _, err := w.Covers.Fetch(ctx, meta.ISBN, isbn13, meta.ExternalVolumeID); err != nil {
		if !errors.Is(err, cover.ErrNoCover) {
			log.Printf("[worker] cover download error for %s: %v", meta.ISBN, err)
		} else {
			log.Printf("[worker] no cover found for %s", meta.ISBN)
		}
		if !w.AllowMissingCover {
			w.markStuck(ctx, entry, "cover download failed")
			return
		}
		// Acknowledged gap: the book goes in without a cover and the
		// reconciler decides its fate.
	}

	if err := w.Index.Append(ctx, meta.ISBN); err != nil {
		// Non-fatal: the catalog row still lands, the index catches up at
		// the next reconcile.
		log.Printf("[worker] indexing failed for %s: %v", meta.ISBN, err)
	}

	if err := w.Catalog.Create(ctx, meta.Record()); err != nil {
		log.Printf("[worker] catalog insert failed for %s: %v", isbn13, err)
		w.markStuck(ctx, entry, "catalog insert failed")
		return
	}

	if err := w.Queue.Delete(ctx, entry.ID); err != nil {
		log.Printf("[worker] dequeue failed for %s: %v", isbn13, err)
		return
	}

	w.Scans.Record(ctx, meta.ISBN, "success", "book added to catalog: "+meta.Title,
		map[string]any{"source": "worker", "action": "book_added"})
	log.Printf("[worker] book added: %s (%s)", meta.Title, meta.ISBN)
}

func (w *Worker) markStuck(ctx context.Context, entry models.PendingBook, reason string) {
	if err := w.Queue.MarkStuck(ctx, entry.ID); err != nil {
		log.Printf("[worker] mark stuck failed for %s: %v", entry.ISBN, err)
		return
	}
	w.Scans.Record(ctx, entry.ISBN, "error", reason,
		map[string]any{"source": "worker", "action": "stuck"})
}
