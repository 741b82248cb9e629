package model

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// ErrLoanNotOpen is returned when closing a loan that was already returned.
var ErrLoanNotOpen = errors.New("loan is not open")

// LoanStatus is either Open or Closed. The interface is sealed so no other
// state can be constructed outside this package.
type LoanStatus interface {
	loanStatus()
}

// Open marks a loan whose copy is still out with the member.
type Open struct{}

// Closed marks a returned loan.
type Closed struct {
	ReturnedAt time.Time
}

func (Open) loanStatus()   {}
func (Closed) loanStatus() {}

// Loan is an append-only record of one copy lent to one member.
type Loan struct {
	ID         string
	BookID     string
	MemberID   string
	BorrowedAt time.Time
	Status     LoanStatus
}

// NewLoan returns an open loan.
func NewLoan(id, bookID, memberID string, borrowedAt time.Time) Loan {
	return Loan{
		ID:         id,
		BookID:     bookID,
		MemberID:   memberID,
		BorrowedAt: borrowedAt,
		Status:     Open{},
	}
}

// IsOpen reports whether the loan has not been returned yet.
func (l Loan) IsOpen() bool {
	_, closed := l.Status.(Closed)
	return !closed
}

// ReturnedAt returns the return timestamp and true for a closed loan.
func (l Loan) ReturnedAt() (time.Time, bool) {
	c, ok := l.Status.(Closed)
	return c.ReturnedAt, ok
}

// Close transitions an open loan to Closed. A return timestamp earlier than
// BorrowedAt (clock skew) is clamped to BorrowedAt.
func (l Loan) Close(at time.Time) (Loan, error) {
	if !l.IsOpen() {
		return l, ErrLoanNotOpen
	}
	if at.Before(l.BorrowedAt) {
		at = l.BorrowedAt
	}
	l.Status = Closed{ReturnedAt: at}
	return l, nil
}

type loanJSON struct {
	ID         string     `json:"id"`
	BookID     string     `json:"book_id"`
	MemberID   string     `json:"member_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	ReturnedAt *time.Time `json:"returned_at"`
	Status     string     `json:"status"`
}

// MarshalJSON flattens the status into returned_at/status fields.
func (l Loan) MarshalJSON() ([]byte, error) {
	out := loanJSON{
		ID:         l.ID,
		BookID:     l.BookID,
		MemberID:   l.MemberID,
		BorrowedAt: l.BorrowedAt,
		Status:     "open",
	}
	if at, ok := l.ReturnedAt(); ok {
		out.ReturnedAt = &at
		out.Status = "closed"
	}
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(out)
}
