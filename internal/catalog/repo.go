package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"ridizi/pkg/models"
)

// Repo is the catalog store. Books are created exactly once by the
// ingestion worker; the ISBN-10 primary key enforces uniqueness.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Create inserts a book row. A duplicate ISBN-10 surfaces as a constraint
// error from the driver; the worker treats that as a persistence conflict.
func (r *Repo) Create(ctx context.Context, b models.Book) error {
	authorsJSON, err := json.Marshal(b.Authors)
	if err != nil {
		return fmt.Errorf("marshal authors for %s: %w", b.ISBN, err)
	}
	genresJSON, err := json.Marshal(b.Genres)
	if err != nil {
		return fmt.Errorf("marshal genres for %s: %w", b.ISBN, err)
	}
	linksJSON, err := json.Marshal(b.ExternalLinks)
	if err != nil {
		return fmt.Errorf("marshal external links for %s: %w", b.ISBN, err)
	}

	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO books (isbn, isbn13, title, authors, pages, publication_date,
		                   publisher, language_code, cover_url, description, genres,
		                   average_rating, ratings_count, external_links)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ISBN, b.ISBN13, b.Title, string(authorsJSON), b.Pages, b.PublicationDate,
		b.Publisher, b.LanguageCode, b.CoverURL, b.Description, string(genresJSON),
		b.AverageRating, b.RatingsCount, string(linksJSON),
	)
	if err != nil {
		return fmt.Errorf("insert book %s: %w", b.ISBN, err)
	}
	return nil
}

// GetByISBN fetches a book by its ISBN-10 key. Returns (nil, nil) when no
// row exists.
func (r *Repo) GetByISBN(ctx context.Context, isbn10 string) (*models.Book, error) {
	return r.getWhere(ctx, "isbn = ?", isbn10)
}

// GetByISBN13 fetches a book by its scanned ISBN-13. Returns (nil, nil) when
// no row exists.
func (r *Repo) GetByISBN13(ctx context.Context, isbn13 string) (*models.Book, error) {
	return r.getWhere(ctx, "isbn13 = ?", isbn13)
}

func (r *Repo) getWhere(ctx context.Context, where string, arg any) (*models.Book, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT isbn, isbn13, title, authors, pages, publication_date,
		       publisher, language_code, cover_url, description, genres,
		       average_rating, ratings_count, external_links, date_added
		FROM books
		WHERE `+where, arg)

	var (
		b           models.Book
		isbn13      sql.NullString
		authorsJSON sql.NullString
		pages       sql.NullInt64
		pubDate     sql.NullString
		publisher   sql.NullString
		language    sql.NullString
		coverURL    sql.NullString
		description sql.NullString
		genresJSON  sql.NullString
		rating      sql.NullFloat64
		ratingCount sql.NullInt64
		linksJSON   sql.NullString
		dateAdded   sql.NullTime
	)

	if err := row.Scan(
		&b.ISBN, &isbn13, &b.Title, &authorsJSON, &pages, &pubDate,
		&publisher, &language, &coverURL, &description, &genresJSON,
		&rating, &ratingCount, &linksJSON, &dateAdded,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan book: %w", err)
	}

	b.ISBN13 = isbn13.String
	if pages.Valid {
		b.Pages = int(pages.Int64)
	}
	b.PublicationDate = pubDate.String
	b.Publisher = publisher.String
	b.LanguageCode = language.String
	b.CoverURL = coverURL.String
	b.Description = description.String
	b.AverageRating = rating.Float64
	if ratingCount.Valid {
		b.RatingsCount = int(ratingCount.Int64)
	}
	if dateAdded.Valid {
		b.DateAdded = dateAdded.Time
	}

	_ = json.Unmarshal([]byte(authorsJSON.String), &b.Authors)
	_ = json.Unmarshal([]byte(genresJSON.String), &b.Genres)
	_ = json.Unmarshal([]byte(linksJSON.String), &b.ExternalLinks)

	return &b, nil
}

// ListISBNs returns every ISBN-10 in the catalog.
func (r *Repo) ListISBNs(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT isbn FROM books`)
	if err != nil {
		return nil, fmt.Errorf("list isbns: %w", err)
	}
	defer rows.Close()

	var isbns []string
	for rows.Next() {
		var isbn string
		if err := rows.Scan(&isbn); err != nil {
			return nil, fmt.Errorf("scan isbn: %w", err)
		}
		isbns = append(isbns, isbn)
	}
	return isbns, rows.Err()
}

// Delete removes a book row. Used only by the reconciler.
func (r *Repo) Delete(ctx context.Context, isbn10 string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM books WHERE isbn = ?`, isbn10); err != nil {
		return fmt.Errorf("delete book %s: %w", isbn10, err)
	}
	return nil
}
