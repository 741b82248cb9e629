package service

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/library-lending/internal/model"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository"
)

// LoanLedger owns loan records inside one transaction. Loans are only ever
// appended or closed, never deleted.
type LoanLedger struct {
	tx    repository.Tx
	newID func() string
	now   func() time.Time
}

func (l LoanLedger) OpenLoansForBook(ctx context.Context, bookID string) ([]model.Loan, error) {
	return l.tx.OpenLoansForBook(ctx, bookID)
}

func (l LoanLedger) OpenLoansForMember(ctx context.Context, memberID string) ([]model.Loan, error) {
	return l.tx.OpenLoansForMember(ctx, memberID)
}

// FindOpenLoan returns the oldest open loan for the pair, or nil when none is open.
func (l LoanLedger) FindOpenLoan(ctx context.Context, memberID, bookID string) (*model.Loan, error) {
	loan, err := l.tx.LockOpenLoan(ctx, memberID, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return loan, nil
}

// Open records a new loan borrowed now.
func (l LoanLedger) Open(ctx context.Context, bookID, memberID string) (*model.Loan, error) {
	loan := model.NewLoan(l.newID(), bookID, memberID, l.now())
	if err := l.tx.InsertLoan(ctx, &loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

// Close marks the loan returned now. Closing a closed loan fails with ErrLoanNotOpen.
func (l LoanLedger) Close(ctx context.Context, loan *model.Loan) (*model.Loan, error) {
	closed, err := loan.Close(l.now())
	if err != nil {
		return nil, pairErr(ErrLoanNotOpen, loan.BookID, loan.MemberID)
	}
	at, _ := closed.ReturnedAt()
	if err := l.tx.CloseLoan(ctx, closed.ID, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, pairErr(ErrLoanNotOpen, loan.BookID, loan.MemberID)
		}
		return nil, err
	}
	return &closed, nil
}
