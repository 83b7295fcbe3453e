package cover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingServer serves configurable responses per path and records every
// request method+path.
type countingServer struct {
	mu       sync.Mutex
	requests []string
	image    map[string]bool // paths that serve an image
	srv      *httptest.Server
}

func newCountingServer() *countingServer {
	cs := &countingServer{image: make(map[string]bool)}
	cs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.mu.Lock()
		cs.requests = append(cs.requests, r.Method+" "+r.URL.Path)
		cs.mu.Unlock()

		if !cs.image[r.URL.Path] {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte("jpeg-bytes"))
		}
	}))
	return cs
}

func (cs *countingServer) recorded() []string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]string(nil), cs.requests...)
}

func TestFetchShortCircuit(t *testing.T) {
	cs := newCountingServer()
	defer cs.srv.Close()
	cs.image["/first"] = true
	cs.image["/second"] = true

	r := NewResolver(t.TempDir())
	r.Candidates = func(isbn10, isbn13, volumeID string) []string {
		return []string{cs.srv.URL + "/first", cs.srv.URL + "/second"}
	}

	path, err := r.Fetch(context.Background(), "0306406152", "9780306406157", "")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, filepath.Base(path), "0306406152.jpg")

	// the second candidate must never be contacted
	assert.Equal(t, []string{"HEAD /first", "GET /first"}, cs.recorded())
}

func TestFetchFallsThroughFailedProbe(t *testing.T) {
	cs := newCountingServer()
	defer cs.srv.Close()
	cs.image["/third"] = true

	r := NewResolver(t.TempDir())
	r.Candidates = func(isbn10, isbn13, volumeID string) []string {
		return []string{cs.srv.URL + "/first", cs.srv.URL + "/second", cs.srv.URL + "/third"}
	}

	_, err := r.Fetch(context.Background(), "0306406152", "9780306406157", "")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"HEAD /first", "HEAD /second", "HEAD /third", "GET /third",
	}, cs.recorded())
}

func TestFetchRejectsNonImageContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>not a cover</html>"))
	}))
	defer srv.Close()

	r := NewResolver(t.TempDir())
	r.Candidates = func(isbn10, isbn13, volumeID string) []string {
		return []string{srv.URL + "/page"}
	}

	_, err := r.Fetch(context.Background(), "0306406152", "9780306406157", "")
	assert.ErrorIs(t, err, ErrNoCover)
}

func TestFetchAllCandidatesFail(t *testing.T) {
	cs := newCountingServer()
	defer cs.srv.Close()

	dir := t.TempDir()
	r := NewResolver(dir)
	r.Candidates = func(isbn10, isbn13, volumeID string) []string {
		return []string{cs.srv.URL + "/a", cs.srv.URL + "/b"}
	}

	_, err := r.Fetch(context.Background(), "0306406152", "9780306406157", "")
	assert.ErrorIs(t, err, ErrNoCover)

	// nothing written
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchRequiresISBN10(t *testing.T) {
	r := NewResolver(t.TempDir())
	_, err := r.Fetch(context.Background(), "", "9780306406157", "")
	assert.ErrorIs(t, err, ErrNoCover)
}

func TestDefaultCandidateOrder(t *testing.T) {
	urls := defaultCandidates("0306406152", "9780306406157", "vol-123")
	require.Len(t, urls, 5)

	// Amazon variants first, then the volume-id content URL, then OpenLibrary.
	assert.Contains(t, urls[0], "images-amazon.com")
	assert.Contains(t, urls[0], "0306406152")
	assert.Contains(t, urls[3], "books.google.com")
	assert.Contains(t, urls[3], "vol-123")
	assert.Contains(t, urls[4], "covers.openlibrary.org")
	assert.Contains(t, urls[4], "default=false")

	// without a volume id the content URL is skipped
	assert.Len(t, defaultCandidates("0306406152", "9780306406157", ""), 4)
}
