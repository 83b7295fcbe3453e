package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridizi/pkg/models"
)

type fakeSource struct {
	name  string
	meta  *models.BookMeta
	err   error
	calls *[]string
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Lookup(ctx context.Context, isbn13 string) (*models.BookMeta, error) {
	*f.calls = append(*f.calls, f.name)
	if f.err != nil {
		return nil, f.err
	}
	return f.meta, nil
}

func TestChainFallbackOrder(t *testing.T) {
	var calls []string

	primary := &fakeSource{name: "primary", err: ErrNotFound, calls: &calls}
	secondary := &fakeSource{
		name:  "secondary",
		meta:  &models.BookMeta{ISBN13: "9780306406157", Title: "Fallback Title"},
		calls: &calls,
	}

	chain := NewChain(primary, secondary)
	meta, err := chain.Resolve(context.Background(), "9780306406157")

	require.NoError(t, err)
	assert.Equal(t, "Fallback Title", meta.Title)
	assert.Equal(t, []string{"primary", "secondary"}, calls)
}

func TestChainExhaustion(t *testing.T) {
	var calls []string

	a := &fakeSource{name: "a", err: errors.New("boom"), calls: &calls}
	b := &fakeSource{name: "b", err: ErrNotFound, calls: &calls}

	chain := NewChain(a, b)
	_, err := chain.Resolve(context.Background(), "9780306406157")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestChainFirstRecordWins(t *testing.T) {
	var calls []string

	// A sparse record from the first source still wins the chain.
	sparse := &fakeSource{
		name:  "sparse",
		meta:  &models.BookMeta{ISBN13: "9780306406157"},
		calls: &calls,
	}
	rich := &fakeSource{
		name:  "rich",
		meta:  &models.BookMeta{ISBN13: "9780306406157", Title: "Rich"},
		calls: &calls,
	}

	chain := NewChain(sparse, rich)
	meta, err := chain.Resolve(context.Background(), "9780306406157")

	require.NoError(t, err)
	assert.Empty(t, meta.Title)
	assert.Equal(t, []string{"sparse"}, calls)
}

func TestGoogleBooksLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes", r.URL.Path)
		assert.Equal(t, "isbn:9780306406157", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"totalItems": 1,
			"items": [{
				"id": "vol-123",
				"volumeInfo": {
					"title": "Numerical Recipes",
					"authors": ["William H. Press"],
					"publisher": "CUP",
					"publishedDate": "2007",
					"description": "A book.",
					"pageCount": 1256,
					"categories": ["Computers"],
					"averageRating": 4.5,
					"ratingsCount": 12,
					"language": "en",
					"infoLink": "https://example.com/info",
					"industryIdentifiers": [
						{"type": "ISBN_13", "identifier": "9780306406157"},
						{"type": "ISBN_10", "identifier": "0306406152"}
					],
					"imageLinks": {"thumbnail": "https://example.com/t.jpg"}
				}
			}]
		}`))
	}))
	defer srv.Close()

	src := NewGoogleBooks()
	src.BaseURL = srv.URL

	meta, err := src.Lookup(context.Background(), "9780306406157")
	require.NoError(t, err)

	assert.Equal(t, "0306406152", meta.ISBN)
	assert.Equal(t, "9780306406157", meta.ISBN13)
	assert.Equal(t, "Numerical Recipes", meta.Title)
	assert.Equal(t, []string{"William H. Press"}, meta.Authors)
	assert.Equal(t, 1256, meta.Pages)
	assert.Equal(t, "en", meta.LanguageCode)
	assert.Equal(t, "vol-123", meta.ExternalVolumeID)
	assert.Equal(t, []string{"https://example.com/info"}, meta.ExternalLinks)
}

func TestGoogleBooksNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"totalItems": 0}`))
	}))
	defer srv.Close()

	src := NewGoogleBooks()
	src.BaseURL = srv.URL

	_, err := src.Lookup(context.Background(), "9780306406157")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenLibraryLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/books", r.URL.Path)
		assert.Equal(t, "ISBN:9780306406157", r.URL.Query().Get("bibkeys"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"ISBN:9780306406157": {
				"title": "Numerical Recipes",
				"description": {"value": "Wrapped description"},
				"authors": [{"name": "William H. Press"}],
				"number_of_pages": 1256,
				"publish_date": "2007",
				"publishers": [{"name": "CUP"}],
				"languages": [{"key": "/languages/eng"}],
				"identifiers": {"isbn_10": ["0306406152"]},
				"cover": {"medium": "https://example.com/m.jpg"},
				"links": [{"url": "https://example.com/l"}],
				"subjects": ["Mathematics", {"name": "Computing"}]
			}
		}`))
	}))
	defer srv.Close()

	src := NewOpenLibrary()
	src.BaseURL = srv.URL

	meta, err := src.Lookup(context.Background(), "9780306406157")
	require.NoError(t, err)

	assert.Equal(t, "0306406152", meta.ISBN)
	assert.Equal(t, "Numerical Recipes", meta.Title)
	assert.Equal(t, "Wrapped description", meta.Description)
	assert.Equal(t, "eng", meta.LanguageCode)
	assert.Equal(t, "CUP", meta.Publisher)
	assert.Equal(t, "https://example.com/m.jpg", meta.CoverURL)
	assert.Equal(t, []string{"Mathematics", "Computing"}, meta.Genres)
}

func TestOpenLibraryNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	src := NewOpenLibrary()
	src.BaseURL = srv.URL

	_, err := src.Lookup(context.Background(), "9780306406157")
	assert.ErrorIs(t, err, ErrNotFound)
}
