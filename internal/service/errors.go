package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/library-lending/internal/model"
)

// Domain failures. They are returned wrapped in *Error, so match them with
// errors.Is.
var (
	ErrBookNotFound        = errors.New("book not found")
	ErrMemberNotFound      = errors.New("member not found")
	ErrBookUnavailable     = errors.New("book is not available")
	ErrBorrowLimitExceeded = errors.New("member cannot borrow more books")
	ErrNoOpenLoan          = errors.New("no open loan for member and book")
	ErrHasOpenLoans        = errors.New("entity has open loans")
	ErrDuplicateBook       = errors.New("book with this title and author already exists")
	ErrLoanNotOpen         = model.ErrLoanNotOpen
)

// Error carries a domain failure together with the ids it concerns.
type Error struct {
	Kind     error
	BookID   string
	MemberID string
}

func (e *Error) Error() string {
	var ids []string
	if e.BookID != "" {
		ids = append(ids, "book="+e.BookID)
	}
	if e.MemberID != "" {
		ids = append(ids, "member="+e.MemberID)
	}
	if len(ids) == 0 {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s (%s)", e.Kind, strings.Join(ids, " "))
}

func (e *Error) Unwrap() error { return e.Kind }

func bookErr(kind error, bookID string) error {
	return &Error{Kind: kind, BookID: bookID}
}

func memberErr(kind error, memberID string) error {
	return &Error{Kind: kind, MemberID: memberID}
}

func pairErr(kind error, bookID, memberID string) error {
	return &Error{Kind: kind, BookID: bookID, MemberID: memberID}
}

// IsDomain reports whether err is one of the domain failures above, as
// opposed to a storage or infrastructure error.
func IsDomain(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
