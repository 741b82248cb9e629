package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/Shivanand-hulikatti/library-lending/internal/model"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository"
)

const loanColumns = `id, book_id, member_id, borrowed_at, returned_at`

func scanLoan(row interface{ Scan(...any) error }) (*model.Loan, error) {
	var (
		id, bookID, memberID string
		borrowedAt           time.Time
		returnedAt           *time.Time
	)
	if err := row.Scan(&id, &bookID, &memberID, &borrowedAt, &returnedAt); err != nil {
		return nil, err
	}
	loan := model.NewLoan(id, bookID, memberID, borrowedAt)
	if returnedAt != nil {
		loan.Status = model.Closed{ReturnedAt: *returnedAt}
	}
	return &loan, nil
}

func (t *txn) queryLoans(ctx context.Context, sql string, args ...any) ([]model.Loan, error) {
	rows, err := t.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("query loans: %w", err))
	}
	defer rows.Close()

	var loans []model.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, *l)
	}
	return loans, classify(rows.Err())
}

// ListLoans returns one page of loans matching f, newest first.
func (s *Store) ListLoans(ctx context.Context, f model.LoanFilter, p model.Page) ([]model.Loan, int, error) {
	p = p.Normalize()

	base := s.builder.From("loans")
	if f.BookID != "" {
		base = base.Where(goqu.Ex{"book_id": f.BookID})
	}
	if f.MemberID != "" {
		base = base.Where(goqu.Ex{"member_id": f.MemberID})
	}
	if f.OpenOnly {
		base = base.Where(goqu.C("returned_at").IsNull())
	}

	total, err := s.count(ctx, base)
	if err != nil {
		return nil, 0, err
	}

	query, args, err := base.
		Select("id", "book_id", "member_id", "borrowed_at", "returned_at").
		Order(goqu.I("borrowed_at").Desc(), goqu.I("id").Asc()).
		Limit(uint(p.Limit())).
		Offset(uint(p.Offset())).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list loans query: %w", err)
	}

	loans, err := (&txn{q: s.db}).queryLoans(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

func (t *txn) OpenLoansForBook(ctx context.Context, bookID string) ([]model.Loan, error) {
	return t.queryLoans(ctx,
		`SELECT `+loanColumns+` FROM loans
		 WHERE book_id = $1 AND returned_at IS NULL
		 ORDER BY borrowed_at ASC`,
		bookID,
	)
}

func (t *txn) OpenLoansForMember(ctx context.Context, memberID string) ([]model.Loan, error) {
	return t.queryLoans(ctx,
		`SELECT `+loanColumns+` FROM loans
		 WHERE member_id = $1 AND returned_at IS NULL
		 ORDER BY borrowed_at ASC`,
		memberID,
	)
}

func (t *txn) LockOpenLoan(ctx context.Context, memberID, bookID string) (*model.Loan, error) {
	l, err := scanLoan(t.q.QueryRow(ctx,
		`SELECT `+loanColumns+` FROM loans
		 WHERE member_id = $1 AND book_id = $2 AND returned_at IS NULL
		 ORDER BY borrowed_at ASC, id ASC
		 LIMIT 1
		 FOR UPDATE`,
		memberID, bookID,
	))
	if err != nil {
		return nil, classify(fmt.Errorf("lock open loan: %w", err))
	}
	return l, nil
}

func (t *txn) InsertLoan(ctx context.Context, l *model.Loan) error {
	var returnedAt *time.Time
	if at, ok := l.ReturnedAt(); ok {
		returnedAt = &at
	}
	_, err := t.q.Exec(ctx,
		`INSERT INTO loans (id, book_id, member_id, borrowed_at, returned_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		l.ID, l.BookID, l.MemberID, l.BorrowedAt, returnedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("insert loan: %w", err))
	}
	return nil
}

// CloseLoan sets returned_at once. The IS NULL guard keeps a second close
// from overwriting the first timestamp.
func (t *txn) CloseLoan(ctx context.Context, id string, returnedAt time.Time) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE loans SET returned_at = $2 WHERE id = $1 AND returned_at IS NULL`,
		id, returnedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("close loan: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
