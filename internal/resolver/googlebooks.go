package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ridizi/pkg/models"
)

const googleBooksBase = "https://www.googleapis.com/books/v1"

// GoogleBooks is the primary catalog source. It also yields the volume id
// used by the cover chain's content URL.
type GoogleBooks struct {
	BaseURL string
	Client  *http.Client
}

func NewGoogleBooks() *GoogleBooks {
	return &GoogleBooks{
		BaseURL: googleBooksBase,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *GoogleBooks) Name() string { return "google_books" }

type gbResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		ID         string `json:"id"`
		VolumeInfo struct {
			Title               string `json:"title"`
			Authors             []string `json:"authors"`
			Publisher           string `json:"publisher"`
			PublishedDate       string `json:"publishedDate"`
			Description         string `json:"description"`
			PageCount           int    `json:"pageCount"`
			Categories          []string `json:"categories"`
			AverageRating       float64 `json:"averageRating"`
			RatingsCount        int     `json:"ratingsCount"`
			Language            string  `json:"language"`
			InfoLink            string  `json:"infoLink"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
			ImageLinks struct {
				Thumbnail string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

func (s *GoogleBooks) Lookup(ctx context.Context, isbn13 string) (*models.BookMeta, error) {
	u, err := url.Parse(s.BaseURL + "/volumes")
	if err != nil {
		return nil, fmt.Errorf("google_books: parse url: %w", err)
	}
	q := u.Query()
	q.Set("q", "isbn:"+isbn13)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("google_books: build request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google_books: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("google_books: status %d: %s", resp.StatusCode, string(body))
	}

	var gb gbResponse
	if err := json.NewDecoder(resp.Body).Decode(&gb); err != nil {
		return nil, fmt.Errorf("google_books: decode: %w", err)
	}

	if len(gb.Items) == 0 {
		return nil, fmt.Errorf("google_books: %w", ErrNotFound)
	}

	vol := gb.Items[0]
	info := vol.VolumeInfo

	isbn10 := ""
	for _, id := range info.IndustryIdentifiers {
		if id.Type == "ISBN_10" {
			isbn10 = id.Identifier
			break
		}
	}

	var links []string
	if info.InfoLink != "" {
		links = []string{info.InfoLink}
	}

	return &models.BookMeta{
		ISBN:             isbn10,
		ISBN13:           isbn13,
		Title:            info.Title,
		Authors:          info.Authors,
		Pages:            info.PageCount,
		PublicationDate:  info.PublishedDate,
		Publisher:        info.Publisher,
		LanguageCode:     info.Language,
		CoverURL:         info.ImageLinks.Thumbnail,
		Description:      info.Description,
		Genres:           info.Categories,
		AverageRating:    info.AverageRating,
		RatingsCount:     info.RatingsCount,
		ExternalLinks:    links,
		ExternalVolumeID: vol.ID,
	}, nil
}
