// Package service implements the lending rules and orchestrates them over the
// repository layer. Coordinator is the only type that reads across books,
// members and loans; each mutating call runs in exactly one transaction.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/library-lending/internal/model"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository"
)

const instrumentationName = "github.com/Shivanand-hulikatti/library-lending/internal/service"

// Coordinator orchestrates books, members and loans.
type Coordinator struct {
	store       repository.Store
	borrowLimit int
	logger      *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
	newID       func() string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

// WithClock sets the source of membership, borrow and return timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithIDGenerator sets the source of new entity ids.
func WithIDGenerator(newID func() string) Option {
	return func(c *Coordinator) {
		c.newID = newID
	}
}

// NewCoordinator constructs a Coordinator enforcing borrowLimit open loans per member.
func NewCoordinator(store repository.Store, borrowLimit int, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		borrowLimit: borrowLimit,
		logger:      zap.NewNop(),
		tracer:      otel.Tracer(instrumentationName),
		// Postgres keeps microseconds; truncating keeps returned values equal to stored ones.
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BorrowLimit returns the configured maximum of open loans per member.
func (c *Coordinator) BorrowLimit() int {
	return c.borrowLimit
}

func (c *Coordinator) ledgers(tx repository.Tx) (BookLedger, MemberRegistry, LoanLedger) {
	return BookLedger{tx: tx, newID: c.newID},
		MemberRegistry{tx: tx, newID: c.newID, now: c.now},
		LoanLedger{tx: tx, newID: c.newID, now: c.now}
}

func (c *Coordinator) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records the outcome on span and wraps infrastructure errors with op.
// Domain errors pass through untouched so callers can match them.
func endSpan(span trace.Span, op string, err error) error {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if IsDomain(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ─── Books ────────────────────────────────────────────────────────────────────

// RegisterBook adds one copy of the title, creating the book on first registration.
func (c *Coordinator) RegisterBook(ctx context.Context, req model.CreateBookRequest) (*model.Book, error) {
	ctx, span := c.startSpan(ctx, "catalog.register_book",
		attribute.String("book.title", req.Title),
		attribute.String("book.author", req.Author),
	)

	var book *model.Book
	err := c.store.WithinTx(ctx, func(tx repository.Tx) error {
		books, _, _ := c.ledgers(tx)
		var err error
		book, err = books.RegisterCopy(ctx, req.Title, req.Author)
		return err
	})
	if err = endSpan(span, "register book", err); err != nil {
		return nil, err
	}

	c.logger.Info("book copy registered",
		zap.String("book_id", book.ID),
		zap.Int("amount", book.Amount),
	)
	return book, nil
}

// GetBook returns a single book.
func (c *Coordinator) GetBook(ctx context.Context, id string) (*model.Book, error) {
	b, err := c.store.GetBook(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, bookErr(ErrBookNotFound, id)
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

// ListBooks returns one page of books and its metadata.
func (c *Coordinator) ListBooks(ctx context.Context, p model.Page) ([]model.Book, model.Metadata, error) {
	p = p.Normalize()
	books, total, err := c.store.ListBooks(ctx, p)
	if err != nil {
		return nil, model.Metadata{}, fmt.Errorf("list books: %w", err)
	}
	return books, model.NewMetadata(total, p), nil
}

// UpdateBook changes title and/or author. The copy count is not editable.
func (c *Coordinator) UpdateBook(ctx context.Context, id string, req model.UpdateBookRequest) (*model.Book, error) {
	ctx, span := c.startSpan(ctx, "catalog.update_book", attribute.String("book.id", id))

	var book *model.Book
	err := c.store.WithinTx(ctx, func(tx repository.Tx) error {
		books, _, _ := c.ledgers(tx)
		var err error
		if book, err = books.Lock(ctx, id); err != nil {
			return err
		}
		return books.Rename(ctx, book, req)
	})
	if err = endSpan(span, "update book", err); err != nil {
		return nil, err
	}
	return book, nil
}

// RemoveBook deletes a book that has no open loans.
func (c *Coordinator) RemoveBook(ctx context.Context, id string) error {
	ctx, span := c.startSpan(ctx, "catalog.remove_book", attribute.String("book.id", id))

	err := c.store.WithinTx(ctx, func(tx repository.Tx) error {
		books, _, loans := c.ledgers(tx)
		if _, err := books.Lock(ctx, id); err != nil {
			return err
		}
		open, err := loans.OpenLoansForBook(ctx, id)
		if err != nil {
			return err
		}
		return books.Remove(ctx, id, len(open))
	})
	if err = endSpan(span, "remove book", err); err != nil {
		return err
	}

	c.logger.Info("book removed", zap.String("book_id", id))
	return nil
}

// ─── Members ──────────────────────────────────────────────────────────────────

// RegisterMember creates a member with membership starting now.
func (c *Coordinator) RegisterMember(ctx context.Context, req model.CreateMemberRequest) (*model.Member, error) {
	ctx, span := c.startSpan(ctx, "registry.register_member")

	var member *model.Member
	err := c.store.WithinTx(ctx, func(tx repository.Tx) error {
		_, members, _ := c.ledgers(tx)
		var err error
		member, err = members.Register(ctx, req.Name, req.Surname)
		return err
	})
	if err = endSpan(span, "register member", err); err != nil {
		return nil, err
	}

	c.logger.Info("member registered", zap.String("member_id", member.ID))
	return member, nil
}

// GetMember returns a single member.
func (c *Coordinator) GetMember(ctx context.Context, id string) (*model.Member, error) {
	m, err := c.store.GetMember(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, memberErr(ErrMemberNotFound, id)
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListMembers returns one page of members and its metadata.
func (c *Coordinator) ListMembers(ctx context.Context, p model.Page) ([]model.Member, model.Metadata, error) {
	p = p.Normalize()
	members, total, err := c.store.ListMembers(ctx, p)
	if err != nil {
		return nil, model.Metadata{}, fmt.Errorf("list members: %w", err)
	}
	return members, model.NewMetadata(total, p), nil
}

// UpdateMember changes name and/or surname.
func (c *Coordinator) UpdateMember(ctx context.Context, id string, req model.UpdateMemberRequest) (*model.Member, error) {
	ctx, span := c.startSpan(ctx, "registry.update_member", attribute.String("member.id", id))

	var member *model.Member
	err := c.store.WithinTx(ctx, func(tx repository.Tx) error {
		_, members, _ := c.ledgers(tx)
		var err error
		if member, err = members.Lock(ctx, id); err != nil {
			return err
		}
		return members.Rename(ctx, member, req)
	})
	if err = endSpan(span, "update member", err); err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember deletes a member that has no open loans.
func (c *Coordinator) RemoveMember(ctx context.Context, id string) error {
	ctx, span := c.startSpan(ctx, "registry.remove_member", attribute.String("member.id", id))

	err := c.store.WithinTx(ctx, func(tx repository.Tx) error {
		_, members, loans := c.ledgers(tx)
		if _, err := members.Lock(ctx, id); err != nil {
			return err
		}
		open, err := loans.OpenLoansForMember(ctx, id)
		if err != nil {
			return err
		}
		return members.Remove(ctx, id, len(open))
	})
	if err = endSpan(span, "remove member", err); err != nil {
		return err
	}

	c.logger.Info("member removed", zap.String("member_id", id))
	return nil
}
