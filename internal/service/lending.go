package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/library-lending/internal/model"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository"
)

// Borrow lends one copy of the book to the member.
//
// Checks run in a fixed order so the reported error is deterministic: book
// exists, book has a copy, member exists, member is under the limit. The book
// row and then the member row are locked before the checks, and the amount
// decrement commits together with the new loan or not at all. Two concurrent
// borrows of the last copy therefore serialise on the book row and the second
// sees amount == 0; two borrows by one member serialise on the member row and
// the second sees the first's loan in its count.
func (c *Coordinator) Borrow(ctx context.Context, bookID, memberID string) (*model.Loan, error) {
	ctx, span := c.startSpan(ctx, "lending.borrow",
		attribute.String("book.id", bookID),
		attribute.String("member.id", memberID),
		attribute.Int("lending.borrow_limit", c.borrowLimit),
	)

	var loan *model.Loan
	err := c.store.WithinTx(ctx, func(tx repository.Tx) error {
		books, members, loans := c.ledgers(tx)

		book, err := books.Lock(ctx, bookID)
		if err != nil {
			return err
		}
		if !book.Available() {
			return bookErr(ErrBookUnavailable, bookID)
		}

		if _, err := members.Lock(ctx, memberID); err != nil {
			return err
		}
		open, err := loans.OpenLoansForMember(ctx, memberID)
		if err != nil {
			return err
		}
		if !CanBorrow(len(open), c.borrowLimit) {
			return memberErr(ErrBorrowLimitExceeded, memberID)
		}

		if err := books.TakeOneCopy(ctx, book); err != nil {
			return err
		}
		loan, err = loans.Open(ctx, bookID, memberID)
		return err
	})
	if err = endSpan(span, "borrow book", err); err != nil {
		return nil, err
	}

	c.logger.Info("book borrowed",
		zap.String("loan_id", loan.ID),
		zap.String("book_id", bookID),
		zap.String("member_id", memberID),
	)
	return loan, nil
}

// Return closes the member's oldest open loan of the book and puts the copy
// back on the shelf in the same transaction. A second Return for the same
// pair fails with ErrNoOpenLoan; returns are not meant to be retried blindly.
func (c *Coordinator) Return(ctx context.Context, bookID, memberID string) (*model.Loan, error) {
	ctx, span := c.startSpan(ctx, "lending.return",
		attribute.String("book.id", bookID),
		attribute.String("member.id", memberID),
	)

	var loan *model.Loan
	err := c.store.WithinTx(ctx, func(tx repository.Tx) error {
		books, _, loans := c.ledgers(tx)

		// Lock the book first to keep the lock order of Borrow. A missing
		// book cannot have open loans.
		if _, err := books.Lock(ctx, bookID); err != nil {
			if errors.Is(err, ErrBookNotFound) {
				return pairErr(ErrNoOpenLoan, bookID, memberID)
			}
			return err
		}

		open, err := loans.FindOpenLoan(ctx, memberID, bookID)
		if err != nil {
			return err
		}
		if open == nil {
			return pairErr(ErrNoOpenLoan, bookID, memberID)
		}

		if loan, err = loans.Close(ctx, open); err != nil {
			return err
		}
		_, err = books.ReturnOneCopy(ctx, bookID)
		return err
	})
	if err = endSpan(span, "return book", err); err != nil {
		return nil, err
	}

	c.logger.Info("book returned",
		zap.String("loan_id", loan.ID),
		zap.String("book_id", bookID),
		zap.String("member_id", memberID),
	)
	return loan, nil
}

// ListLoans returns one page of loans matching f.
func (c *Coordinator) ListLoans(ctx context.Context, f model.LoanFilter, p model.Page) ([]model.Loan, model.Metadata, error) {
	p = p.Normalize()
	loans, total, err := c.store.ListLoans(ctx, f, p)
	if err != nil {
		return nil, model.Metadata{}, fmt.Errorf("list loans: %w", err)
	}
	return loans, model.NewMetadata(total, p), nil
}

// ListMemberLoans lists the loans of an existing member.
func (c *Coordinator) ListMemberLoans(ctx context.Context, memberID string, openOnly bool, p model.Page) ([]model.Loan, model.Metadata, error) {
	if _, err := c.GetMember(ctx, memberID); err != nil {
		return nil, model.Metadata{}, err
	}
	return c.ListLoans(ctx, model.LoanFilter{MemberID: memberID, OpenOnly: openOnly}, p)
}
