// Package reconcile restores agreement between the four book stores: the
// catalog table, the cover directory, the name manifest and the
// nearest-neighbor index. Writes to the four are never one transaction, so
// they drift; this batch job intersects them, deletes the strays and
// rebuilds the index so positions line up again. It must not run while
// ingestion is active.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"ridizi/internal/catalog"
	"ridizi/internal/vindex"
)

// Report summarizes one repair pass. A second pass with no intervening
// writes reports all zeros except Rebuilt, which simply restates the index
// size.
type Report struct {
	RemovedDB       int `json:"removed_db"`
	RemovedCovers   int `json:"removed_covers"`
	RemovedManifest int `json:"removed_manifest_entries"`
	Rebuilt         int `json:"rebuilt_count"`
}

type Reconciler struct {
	Catalog   *catalog.Repo
	Index     *vindex.Store
	CoversDir string
}

// Run executes the repair: enumerate the four identifier sets, keep only
// their intersection, delete the rest, then rebuild the index from the
// surviving covers. The rebuild is what restores positional alignment; the
// prior artifacts may already disagree silently.
func (r *Reconciler) Run(ctx context.Context) (*Report, error) {
	dbISBNs, err := r.Catalog.ListISBNs(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list catalog: %w", err)
	}
	dbSet := toSet(dbISBNs)
	log.Printf("[reconcile] catalog ISBN count: %d", len(dbSet))

	coverSet, err := r.listCovers()
	if err != nil {
		return nil, fmt.Errorf("reconcile: list covers: %w", err)
	}
	log.Printf("[reconcile] cover file count: %d", len(coverSet))

	names, err := r.Index.Manifest()
	if err != nil {
		return nil, fmt.Errorf("reconcile: load manifest: %w", err)
	}

	// The manifest is append-only and may carry duplicates; dedupe before
	// trusting it as a set, first occurrence wins.
	manifestISBNs := dedupeISBNs(names)
	manifestSet := toSet(manifestISBNs)
	log.Printf("[reconcile] manifest ISBN count: %d (deduped from %d)", len(manifestSet), len(names))

	indexCount, err := r.Index.IndexCount()
	if err != nil {
		return nil, fmt.Errorf("reconcile: load index: %w", err)
	}
	// Index entries pair positionally with the deduped manifest, truncated
	// to whichever is shorter.
	if indexCount > len(manifestISBNs) {
		indexCount = len(manifestISBNs)
	}
	indexSet := toSet(manifestISBNs[:indexCount])
	log.Printf("[reconcile] index vector count: %d", indexCount)

	keep := intersect(dbSet, coverSet, manifestSet, indexSet)
	log.Printf("[reconcile] ISBNs present in all four stores: %d", len(keep))

	report := &Report{}

	for isbn := range dbSet {
		if keep[isbn] {
			continue
		}
		if err := r.Catalog.Delete(ctx, isbn); err != nil {
			return nil, fmt.Errorf("reconcile: %w", err)
		}
		report.RemovedDB++
	}
	log.Printf("[reconcile] removed %d catalog records", report.RemovedDB)

	for isbn := range coverSet {
		if keep[isbn] {
			continue
		}
		path := filepath.Join(r.CoversDir, isbn+".jpg")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reconcile: remove cover %s: %w", path, err)
		}
		report.RemovedCovers++
	}
	log.Printf("[reconcile] removed %d cover files", report.RemovedCovers)

	// Rewrite the manifest restricted to keep, preserving relative order.
	cleaned := make([]string, 0, len(manifestISBNs))
	for _, isbn := range manifestISBNs {
		if keep[isbn] {
			cleaned = append(cleaned, isbn)
		}
	}
	report.RemovedManifest = len(names) - len(cleaned)

	cleanedNames := make([]string, len(cleaned))
	for i, isbn := range cleaned {
		cleanedNames[i] = isbn + ".jpg"
	}
	if err := r.Index.WriteManifest(cleanedNames); err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	log.Printf("[reconcile] manifest rewritten with %d entries", len(cleanedNames))

	rebuilt, err := r.Index.Rebuild(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("reconcile: rebuild: %w", err)
	}
	report.Rebuilt = rebuilt
	log.Printf("[reconcile] index rebuilt with %d vectors", rebuilt)

	return report, nil
}

func (r *Reconciler) listCovers() (map[string]bool, error) {
	entries, err := os.ReadDir(r.CoversDir)
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}

	covers := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".jpg") {
			covers[strings.TrimSuffix(name, filepath.Ext(name))] = true
		}
	}
	return covers, nil
}

// dedupeISBNs strips the .jpg suffix and drops repeated names, keeping the
// first occurrence.
func dedupeISBNs(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		isbn := strings.TrimSuffix(n, ".jpg")
		if seen[isbn] {
			continue
		}
		seen[isbn] = true
		out = append(out, isbn)
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

func intersect(sets ...map[string]bool) map[string]bool {
	if len(sets) == 0 {
		return map[string]bool{}
	}
	keep := make(map[string]bool)
	for item := range sets[0] {
		inAll := true
		for _, s := range sets[1:] {
			if !s[item] {
				inAll = false
				break
			}
		}
		if inAll {
			keep[item] = true
		}
	}
	return keep
}
