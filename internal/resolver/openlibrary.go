package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ridizi/pkg/models"
)

const openLibraryBase = "https://openlibrary.org"

// OpenLibrary is the fallback catalog source. Its JSON shape is loose:
// descriptions can be strings or objects, subjects strings or objects, so
// the mapping is deliberately forgiving.
type OpenLibrary struct {
	BaseURL string
	Client  *http.Client
}

func NewOpenLibrary() *OpenLibrary {
	return &OpenLibrary{
		BaseURL: openLibraryBase,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *OpenLibrary) Name() string { return "openlibrary" }

type olRecord struct {
	Title       string `json:"title"`
	Description any    `json:"description"` // string or {"value": string}
	Authors     []struct {
		Name string `json:"name"`
	} `json:"authors"`
	NumberOfPages int    `json:"number_of_pages"`
	PublishDate   string `json:"publish_date"`
	Publishers    []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	Languages []struct {
		Key string `json:"key"` // e.g. "/languages/eng"
	} `json:"languages"`
	Identifiers struct {
		ISBN10 []string `json:"isbn_10"`
	} `json:"identifiers"`
	Cover struct {
		Small  string `json:"small"`
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"cover"`
	Links []struct {
		URL string `json:"url"`
	} `json:"links"`
	Subjects []json.RawMessage `json:"subjects"` // strings or {"name": string}
}

func (s *OpenLibrary) Lookup(ctx context.Context, isbn13 string) (*models.BookMeta, error) {
	u, err := url.Parse(s.BaseURL + "/api/books")
	if err != nil {
		return nil, fmt.Errorf("openlibrary: parse url: %w", err)
	}
	bibkey := "ISBN:" + isbn13
	q := u.Query()
	q.Set("bibkeys", bibkey)
	q.Set("format", "json")
	q.Set("jscmd", "data")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("openlibrary: build request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openlibrary: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openlibrary: status %d: %s", resp.StatusCode, string(body))
	}

	var byKey map[string]olRecord
	if err := json.NewDecoder(resp.Body).Decode(&byKey); err != nil {
		return nil, fmt.Errorf("openlibrary: decode: %w", err)
	}

	record, ok := byKey[bibkey]
	if !ok {
		return nil, fmt.Errorf("openlibrary: %w", ErrNotFound)
	}

	isbn10 := ""
	if len(record.Identifiers.ISBN10) > 0 {
		isbn10 = record.Identifiers.ISBN10[0]
	}

	language := ""
	if len(record.Languages) > 0 {
		parts := strings.Split(record.Languages[0].Key, "/")
		language = parts[len(parts)-1]
	}

	publisher := ""
	if len(record.Publishers) > 0 {
		publisher = record.Publishers[0].Name
	}

	coverURL := record.Cover.Large
	if coverURL == "" {
		coverURL = record.Cover.Medium
	}
	if coverURL == "" {
		coverURL = record.Cover.Small
	}

	authors := make([]string, 0, len(record.Authors))
	for _, a := range record.Authors {
		if a.Name != "" {
			authors = append(authors, a.Name)
		}
	}

	links := make([]string, 0, len(record.Links))
	for _, l := range record.Links {
		if l.URL != "" {
			links = append(links, l.URL)
		}
	}

	return &models.BookMeta{
		ISBN:            isbn10,
		ISBN13:          isbn13,
		Title:           record.Title,
		Authors:         authors,
		Pages:           record.NumberOfPages,
		PublicationDate: record.PublishDate,
		Publisher:       publisher,
		LanguageCode:    language,
		CoverURL:        coverURL,
		Description:     decodeDescription(record.Description),
		Genres:          decodeSubjects(record.Subjects),
		ExternalLinks:   links,
	}, nil
}

func decodeDescription(v any) string {
	switch d := v.(type) {
	case string:
		return d
	case map[string]any:
		if s, ok := d["value"].(string); ok {
			return s
		}
	}
	return ""
}

func decodeSubjects(raw []json.RawMessage) []string {
	subjects := make([]string, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			subjects = append(subjects, s)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(r, &obj); err == nil && obj.Name != "" {
			subjects = append(subjects, obj.Name)
		}
	}
	return subjects
}
