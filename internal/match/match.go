package match

import (
	"context"
	"strings"

	"ridizi/internal/catalog"
	"ridizi/internal/embedding"
	"ridizi/internal/vindex"
	"ridizi/pkg/models"
)

// Suggestion is one ranked match for an uploaded cover photo.
type Suggestion struct {
	Filename string   `json:"filename"`
	Score    float32  `json:"score"` // distance, lower is better
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	CoverURL string   `json:"cover_url"`
}

// Matcher embeds an uploaded image, searches the visual index and maps the
// resulting positions back to catalog records.
type Matcher struct {
	Embedder embedding.Embedder
	Index    *vindex.Store
	Catalog  *catalog.Repo
}

// Match returns up to alternatives+1 suggestions ordered by ascending
// distance. Index entries whose catalog row has disappeared are dropped
// silently rather than failing the request; an unloadable index propagates
// vindex.ErrIndexUnavailable so callers can distinguish "broken" from
// "no match".
func (m *Matcher) Match(ctx context.Context, image []byte, alternatives int) ([]Suggestion, error) {
	vec, err := m.Embedder.Embed(ctx, image)
	if err != nil {
		return nil, err
	}

	hits, err := m.Index.Search(ctx, vec, alternatives+1)
	if err != nil {
		return nil, err
	}

	suggestions := make([]Suggestion, 0, len(hits))
	for _, hit := range hits {
		isbn := strings.TrimSuffix(hit.Name, ".jpg")
		book, err := m.Catalog.GetByISBN(ctx, isbn)
		if err != nil {
			return nil, err
		}
		if book == nil {
			// manifest entry with no catalog row: drifted, skip
			continue
		}
		suggestions = append(suggestions, suggestionFor(hit, book))
	}
	return suggestions, nil
}

func suggestionFor(hit vindex.Hit, book *models.Book) Suggestion {
	return Suggestion{
		Filename: hit.Name,
		Score:    hit.Distance,
		Title:    book.Title,
		Authors:  book.Authors,
		CoverURL: "/cover/" + hit.Name,
	}
}
