package models

import "time"

// Book is a catalog entry. The ISBN-10 is the canonical key: it names the
// cover file on disk and the manifest entry in the visual-search index.
type Book struct {
	ISBN            string    `json:"isbn"` // ISBN-10
	ISBN13          string    `json:"isbn13,omitempty"`
	Title           string    `json:"title"`
	Authors         []string  `json:"authors"`
	Pages           int       `json:"pages,omitempty"`
	PublicationDate string    `json:"publication_date,omitempty"`
	Publisher       string    `json:"publisher,omitempty"`
	LanguageCode    string    `json:"language_code,omitempty"`
	CoverURL        string    `json:"cover_url,omitempty"`
	Description     string    `json:"description,omitempty"`
	Genres          []string  `json:"genres"`
	AverageRating   float64   `json:"average_rating,omitempty"`
	RatingsCount    int       `json:"ratings_count,omitempty"`
	ExternalLinks   []string  `json:"external_links,omitempty"`
	DateAdded       time.Time `json:"date_added"`
}

// BookMeta is the normalized record returned by the metadata resolver.
// Every external catalog source is mapped into this shape first; only the
// fields that exist as catalog columns are persisted, the rest
// (ExternalVolumeID) feed the cover chain.
type BookMeta struct {
	ISBN             string   `json:"isbn,omitempty"` // ISBN-10, may be absent
	ISBN13           string   `json:"isbn13"`
	Title            string   `json:"title,omitempty"`
	Authors          []string `json:"authors"`
	Pages            int      `json:"pages,omitempty"`
	PublicationDate  string   `json:"publication_date,omitempty"`
	Publisher        string   `json:"publisher,omitempty"`
	LanguageCode     string   `json:"language_code,omitempty"`
	CoverURL         string   `json:"cover_url,omitempty"`
	Description      string   `json:"description,omitempty"`
	Genres           []string `json:"genres"`
	AverageRating    float64  `json:"average_rating,omitempty"`
	RatingsCount     int      `json:"ratings_count,omitempty"`
	ExternalLinks    []string `json:"external_links,omitempty"`
	ExternalVolumeID string   `json:"external_volume_id,omitempty"`
}

// Record converts resolved metadata into a catalog row, dropping the
// resolver-only fields.
func (m BookMeta) Record() Book {
	return Book{
		ISBN:            m.ISBN,
		ISBN13:          m.ISBN13,
		Title:           m.Title,
		Authors:         m.Authors,
		Pages:           m.Pages,
		PublicationDate: m.PublicationDate,
		Publisher:       m.Publisher,
		LanguageCode:    m.LanguageCode,
		CoverURL:        m.CoverURL,
		Description:     m.Description,
		Genres:          m.Genres,
		AverageRating:   m.AverageRating,
		RatingsCount:    m.RatingsCount,
		ExternalLinks:   m.ExternalLinks,
	}
}
