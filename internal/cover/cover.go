package cover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNoCover is returned when every candidate URL failed the probe or the
// download. Callers treat it as non-fatal: a book without a cover is still
// catalogable (subject to configuration).
var ErrNoCover = errors.New("cover: no source produced an image")

// Amazon CDN URL variants in priority order, keyed by ISBN-10.
var amazonPatterns = []string{
	"https://images-na.ssl-images-amazon.com/images/P/%s.01._SCLZZZZZZZ_.jpg",
	"https://images-na.ssl-images-amazon.com/images/P/%s.01._SX200_.jpg",
	"https://images-na.ssl-images-amazon.com/images/P/%s.01._SX300_.jpg",
}

const (
	googleContentTemplate = "https://books.google.com/books/content?id=%s&printsec=frontcover&img=1&zoom=1&source=gbs_api"
	openLibraryTemplate   = "https://covers.openlibrary.org/b/isbn/%s-L.jpg?default=false"
)

// Resolver downloads the first working cover image for a book and writes it
// to {isbn10}.jpg under Dir. CandidateBase overrides the hardcoded provider
// hosts in tests.
type Resolver struct {
	Dir         string
	Client      *http.Client
	ProbeClient *http.Client

	// Candidates overrides the default chain when non-nil (tests).
	Candidates func(isbn10, isbn13, volumeID string) []string
}

func NewResolver(dir string) *Resolver {
	return &Resolver{
		Dir:         dir,
		Client:      &http.Client{Timeout: 10 * time.Second},
		ProbeClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// defaultCandidates builds the fallback chain: Amazon CDN variants, then the
// Google Books content URL when a volume id is known, then OpenLibrary with
// default placeholders disabled.
func defaultCandidates(isbn10, isbn13, volumeID string) []string {
	candidates := make([]string, 0, len(amazonPatterns)+2)
	for _, p := range amazonPatterns {
		candidates = append(candidates, fmt.Sprintf(p, isbn10))
	}
	if volumeID != "" {
		candidates = append(candidates, fmt.Sprintf(googleContentTemplate, volumeID))
	}
	candidates = append(candidates, fmt.Sprintf(openLibraryTemplate, isbn13))
	return candidates
}

// Fetch tries each candidate URL in order. A candidate must answer a HEAD
// probe with 200 and an image content-type before its body is downloaded;
// the first candidate that passes both is written to disk and the rest are
// never contacted.
func (r *Resolver) Fetch(ctx context.Context, isbn10, isbn13, volumeID string) (string, error) {
	if isbn10 == "" {
		return "", fmt.Errorf("cover: missing ISBN-10: %w", ErrNoCover)
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("cover: ensure covers dir: %w", err)
	}

	build := r.Candidates
	if build == nil {
		build = defaultCandidates
	}

	dest := filepath.Join(r.Dir, isbn10+".jpg")

	for _, u := range build(isbn10, isbn13, volumeID) {
		if !r.probe(ctx, u) {
			continue
		}
		if err := r.download(ctx, u, dest); err != nil {
			continue
		}
		return dest, nil
	}

	return "", ErrNoCover
}

// probe checks that a URL serves an image without downloading the body.
func (r *Resolver) probe(ctx context.Context, u string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return false
	}
	resp, err := r.ProbeClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK &&
		strings.HasPrefix(resp.Header.Get("Content-Type"), "image")
}

func (r *Resolver) download(ctx context.Context, u, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("cover: build request: %w", err)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("cover: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cover: download status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cover: read body: %w", err)
	}

	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return fmt.Errorf("cover: write %s: %w", dest, err)
	}
	return nil
}
