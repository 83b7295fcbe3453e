package queue

import (
	"context"
	"database/sql"
	"fmt"

	"ridizi/pkg/models"
)

// Repo is the pending-book queue. One row per outstanding ISBN; the worker
// drains non-stuck rows, deletes them on success and flags them stuck on
// failure.
type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Enqueue adds an ISBN to the queue. The UNIQUE constraint rejects a
// duplicate; callers that already checked IsPending treat the error as
// "already queued".
func (r *Repo) Enqueue(ctx context.Context, isbn string) error {
	if _, err := r.DB.ExecContext(ctx,
		`INSERT INTO pending_books (isbn, stucked) VALUES (?, 0)`, isbn); err != nil {
		return fmt.Errorf("enqueue %s: %w", isbn, err)
	}
	return nil
}

// IsPending reports whether an ISBN already has a queue row.
func (r *Repo) IsPending(ctx context.Context, isbn string) (bool, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_books WHERE isbn = ?`, isbn)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("pending lookup %s: %w", isbn, err)
	}
	return n > 0, nil
}

// ListPending returns the non-stuck entries, oldest first. These are what
// one worker cycle drains.
func (r *Repo) ListPending(ctx context.Context) ([]models.PendingBook, error) {
	return r.list(ctx, false)
}

// ListStuck returns the entries a previous cycle failed on.
func (r *Repo) ListStuck(ctx context.Context) ([]models.PendingBook, error) {
	return r.list(ctx, true)
}

func (r *Repo) list(ctx context.Context, stuck bool) ([]models.PendingBook, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, isbn, stucked FROM pending_books WHERE stucked = ? ORDER BY id
	`, stuck)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var entries []models.PendingBook
	for rows.Next() {
		var e models.PendingBook
		if err := rows.Scan(&e.ID, &e.ISBN, &e.Stucked); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkStuck flags an entry so later cycles skip it until an operator drains
// it.
func (r *Repo) MarkStuck(ctx context.Context, id int64) error {
	if _, err := r.DB.ExecContext(ctx,
		`UPDATE pending_books SET stucked = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark stuck %d: %w", id, err)
	}
	return nil
}

// Delete removes a queue entry (terminal state for a successful ingestion,
// or an operator clearing a stuck report).
func (r *Repo) Delete(ctx context.Context, id int64) error {
	if _, err := r.DB.ExecContext(ctx,
		`DELETE FROM pending_books WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete pending %d: %w", id, err)
	}
	return nil
}

// DeleteByISBN removes a queue entry by its ISBN.
func (r *Repo) DeleteByISBN(ctx context.Context, isbn string) error {
	if _, err := r.DB.ExecContext(ctx,
		`DELETE FROM pending_books WHERE isbn = ?`, isbn); err != nil {
		return fmt.Errorf("delete pending %s: %w", isbn, err)
	}
	return nil
}
