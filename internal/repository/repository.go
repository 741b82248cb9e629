// Package repository defines the persistence contract the lending core runs
// against. Adapters live in the postgres and memory subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/library-lending/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// ErrTransient marks failures that may succeed when the whole transaction is
// retried: lock timeouts, serialization failures, deadlocks.
var ErrTransient = errors.New("transient storage failure")

// Store is the entry point of a persistence adapter.
type Store interface {
	Reader

	// WithinTx runs fn in a transaction. fn's error rolls the transaction
	// back and is returned unchanged; a nil error commits.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Reader serves unlocked, read-only lookups.
type Reader interface {
	GetBook(ctx context.Context, id string) (*model.Book, error)
	ListBooks(ctx context.Context, p model.Page) ([]model.Book, int, error)
	GetMember(ctx context.Context, id string) (*model.Member, error)
	ListMembers(ctx context.Context, p model.Page) ([]model.Member, int, error)
	ListLoans(ctx context.Context, f model.LoanFilter, p model.Page) ([]model.Loan, int, error)
}

// Tx exposes locked reads and writes inside one transaction. The Lock*
// methods hold the row until the transaction ends.
type Tx interface {
	LockBook(ctx context.Context, id string) (*model.Book, error)
	LockBookByTitleAndAuthor(ctx context.Context, title, author string) (*model.Book, error)
	InsertBook(ctx context.Context, b *model.Book) error
	UpdateBook(ctx context.Context, b *model.Book) error
	DeleteBook(ctx context.Context, id string) error

	LockMember(ctx context.Context, id string) (*model.Member, error)
	InsertMember(ctx context.Context, m *model.Member) error
	UpdateMember(ctx context.Context, m *model.Member) error
	DeleteMember(ctx context.Context, id string) error

	OpenLoansForBook(ctx context.Context, bookID string) ([]model.Loan, error)
	OpenLoansForMember(ctx context.Context, memberID string) ([]model.Loan, error)
	// LockOpenLoan returns the oldest open loan for the pair or ErrNotFound.
	LockOpenLoan(ctx context.Context, memberID, bookID string) (*model.Loan, error)
	InsertLoan(ctx context.Context, l *model.Loan) error
	CloseLoan(ctx context.Context, id string, returnedAt time.Time) error
}
