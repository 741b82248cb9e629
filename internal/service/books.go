package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/library-lending/internal/model"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository"
)

// BookLedger owns Book.Amount inside one transaction. It knows nothing about
// loans; callers pass in whatever loan counts a rule needs.
type BookLedger struct {
	tx    repository.Tx
	newID func() string
}

// Lock returns the book with its row locked for the rest of the transaction.
func (l BookLedger) Lock(ctx context.Context, bookID string) (*model.Book, error) {
	b, err := l.tx.LockBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, bookErr(ErrBookNotFound, bookID)
		}
		return nil, err
	}
	return b, nil
}

// RegisterCopy adds one copy of (title, author), creating the book when it is
// new. A unique violation means a concurrent transaction registered the same
// title first; the caller retries and lands on the increment path.
func (l BookLedger) RegisterCopy(ctx context.Context, title, author string) (*model.Book, error) {
	b, err := l.tx.LockBookByTitleAndAuthor(ctx, title, author)
	switch {
	case err == nil:
		b.Amount++
		if err := l.tx.UpdateBook(ctx, b); err != nil {
			return nil, err
		}
		return b, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	b = &model.Book{ID: l.newID(), Title: title, Author: author, Amount: 1}
	if err := l.tx.InsertBook(ctx, b); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: concurrent registration of %q by %q", repository.ErrTransient, title, author)
		}
		return nil, err
	}
	return b, nil
}

// TakeOneCopy removes one copy from the shelf. b must have been read through
// Lock in the same transaction.
func (l BookLedger) TakeOneCopy(ctx context.Context, b *model.Book) error {
	if !b.Available() {
		return bookErr(ErrBookUnavailable, b.ID)
	}
	b.Amount--
	return l.tx.UpdateBook(ctx, b)
}

// ReturnOneCopy puts one copy back on the shelf.
func (l BookLedger) ReturnOneCopy(ctx context.Context, bookID string) (*model.Book, error) {
	b, err := l.Lock(ctx, bookID)
	if err != nil {
		return nil, err
	}
	b.Amount++
	if err := l.tx.UpdateBook(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Rename changes title and/or author of a locked book.
func (l BookLedger) Rename(ctx context.Context, b *model.Book, req model.UpdateBookRequest) error {
	if req.Title != nil {
		b.Title = *req.Title
	}
	if req.Author != nil {
		b.Author = *req.Author
	}
	if err := l.tx.UpdateBook(ctx, b); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return bookErr(ErrDuplicateBook, b.ID)
		}
		return err
	}
	return nil
}

// Remove deletes the book unless openLoans is positive.
func (l BookLedger) Remove(ctx context.Context, bookID string, openLoans int) error {
	if openLoans > 0 {
		return bookErr(ErrHasOpenLoans, bookID)
	}
	if err := l.tx.DeleteBook(ctx, bookID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return bookErr(ErrBookNotFound, bookID)
		}
		return err
	}
	return nil
}
