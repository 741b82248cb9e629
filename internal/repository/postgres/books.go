package postgres

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/Shivanand-hulikatti/library-lending/internal/model"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository"
)

const bookColumns = `id, title, author, amount`

func scanBook(row interface{ Scan(...any) error }) (*model.Book, error) {
	var b model.Book
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Amount); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBook returns a single book or repository.ErrNotFound.
func (s *Store) GetBook(ctx context.Context, id string) (*model.Book, error) {
	b, err := scanBook(s.db.QueryRow(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1`, id))
	if err != nil {
		return nil, classify(fmt.Errorf("get book: %w", err))
	}
	return b, nil
}

// ListBooks returns one page of books ordered by title, author and the total count.
func (s *Store) ListBooks(ctx context.Context, p model.Page) ([]model.Book, int, error) {
	p = p.Normalize()
	base := s.builder.From("books")

	total, err := s.count(ctx, base)
	if err != nil {
		return nil, 0, err
	}

	query, args, err := base.
		Select("id", "title", "author", "amount").
		Order(goqu.I("title").Asc(), goqu.I("author").Asc(), goqu.I("id").Asc()).
		Limit(uint(p.Limit())).
		Offset(uint(p.Offset())).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list books query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, classify(fmt.Errorf("list books: %w", err))
	}
	defer rows.Close()

	var books []model.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *b)
	}
	return books, total, rows.Err()
}

// LockBook takes a row-level exclusive lock on the book.
//
// SELECT … FOR UPDATE blocks every other transaction that tries to lock the
// same row until this one commits or rolls back, so the read-check-decrement
// of amount cannot interleave with a concurrent borrow.
func (t *txn) LockBook(ctx context.Context, id string) (*model.Book, error) {
	b, err := scanBook(t.q.QueryRow(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, classify(fmt.Errorf("lock book row: %w", err))
	}
	return b, nil
}

func (t *txn) LockBookByTitleAndAuthor(ctx context.Context, title, author string) (*model.Book, error) {
	b, err := scanBook(t.q.QueryRow(ctx,
		`SELECT `+bookColumns+` FROM books WHERE title = $1 AND author = $2 FOR UPDATE`,
		title, author))
	if err != nil {
		return nil, classify(fmt.Errorf("lock book by title and author: %w", err))
	}
	return b, nil
}

func (t *txn) InsertBook(ctx context.Context, b *model.Book) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO books (id, title, author, amount) VALUES ($1, $2, $3, $4)`,
		b.ID, b.Title, b.Author, b.Amount,
	)
	if err != nil {
		return classify(fmt.Errorf("insert book: %w", err))
	}
	return nil
}

func (t *txn) UpdateBook(ctx context.Context, b *model.Book) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE books SET title = $2, author = $3, amount = $4 WHERE id = $1`,
		b.ID, b.Title, b.Author, b.Amount,
	)
	if err != nil {
		return classify(fmt.Errorf("update book: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *txn) DeleteBook(ctx context.Context, id string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return classify(fmt.Errorf("delete book: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
