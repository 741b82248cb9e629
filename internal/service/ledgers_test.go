package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/library-lending/internal/model"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository/memory"
)

func Test_CanBorrow(t *testing.T) {
	assert.True(t, CanBorrow(0, 1))
	assert.True(t, CanBorrow(9, 10))
	assert.False(t, CanBorrow(10, 10))
	assert.False(t, CanBorrow(11, 10))
}

func Test_LoanLedger_CloseTwiceFailsWithLoanNotOpen(t *testing.T) {
	// arrange
	ctx := context.Background()
	store := memory.New()
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ids := sequentialIDs()
	var loan *model.Loan

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		books := BookLedger{tx: tx, newID: ids}
		members := MemberRegistry{tx: tx, newID: ids, now: func() time.Time { return fixed }}
		loans := LoanLedger{tx: tx, newID: ids, now: func() time.Time { return fixed }}

		book, err := books.RegisterCopy(ctx, "Dune", "Frank Herbert")
		if err != nil {
			return err
		}
		member, err := members.Register(ctx, "Paul", "Atreides")
		if err != nil {
			return err
		}
		opened, err := loans.Open(ctx, book.ID, member.ID)
		if err != nil {
			return err
		}
		loan, err = loans.Close(ctx, opened)
		return err
	})
	require.NoError(t, err)

	// act
	err = store.WithinTx(ctx, func(tx repository.Tx) error {
		_, err := LoanLedger{tx: tx, newID: ids, now: time.Now}.Close(ctx, loan)
		return err
	})

	// assert
	assert.ErrorIs(t, err, ErrLoanNotOpen)
	at, closed := loan.ReturnedAt()
	require.True(t, closed)
	assert.True(t, at.Equal(fixed), "first return timestamp must be kept")
}

func Test_LoanLedger_CloseOfStaleOpenCopyFailsWithLoanNotOpen(t *testing.T) {
	// arrange: a caller holding an outdated open copy of a loan closed elsewhere
	ctx := context.Background()
	store := memory.New()
	ids := sequentialIDs()
	var stale *model.Loan

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		books := BookLedger{tx: tx, newID: ids}
		members := MemberRegistry{tx: tx, newID: ids, now: time.Now}
		loans := LoanLedger{tx: tx, newID: ids, now: time.Now}

		book, _ := books.RegisterCopy(ctx, "Dune", "Frank Herbert")
		member, _ := members.Register(ctx, "Paul", "Atreides")
		opened, err := loans.Open(ctx, book.ID, member.ID)
		if err != nil {
			return err
		}
		copyOfOpen := *opened
		stale = &copyOfOpen
		_, err = loans.Close(ctx, opened)
		return err
	})
	require.NoError(t, err)

	// act
	err = store.WithinTx(ctx, func(tx repository.Tx) error {
		_, err := LoanLedger{tx: tx, newID: ids, now: time.Now}.Close(ctx, stale)
		return err
	})

	// assert
	assert.ErrorIs(t, err, ErrLoanNotOpen)
}

func Test_BookLedger_TakeOneCopyNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		books := BookLedger{tx: tx, newID: sequentialIDs()}
		book, err := books.RegisterCopy(ctx, "Dune", "Frank Herbert")
		require.NoError(t, err)

		require.NoError(t, books.TakeOneCopy(ctx, book))
		assert.Equal(t, 0, book.Amount)

		err = books.TakeOneCopy(ctx, book)
		assert.ErrorIs(t, err, ErrBookUnavailable)
		assert.Equal(t, 0, book.Amount)
		return nil
	})
	require.NoError(t, err)
}

func Test_BookLedger_RegisterCopyConflictIsTransient(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		books := BookLedger{tx: &hidingTx{Tx: tx}, newID: sequentialIDs()}
		_, err := books.RegisterCopy(ctx, "Dune", "Frank Herbert")
		require.NoError(t, err)

		// The lookup misses the row a concurrent registration just wrote.
		_, err = books.RegisterCopy(ctx, "Dune", "Frank Herbert")
		return err
	})

	assert.ErrorIs(t, err, repository.ErrTransient)
}

func Test_Error_MessageCarriesIDs(t *testing.T) {
	err := pairErr(ErrNoOpenLoan, "b-1", "m-1")

	assert.Equal(t, "no open loan for member and book (book=b-1 member=m-1)", err.Error())
	assert.True(t, errors.Is(err, ErrNoOpenLoan))
	assert.True(t, IsDomain(err))
	assert.False(t, IsDomain(errors.New("boom")))
}

// hidingTx never finds books by title, simulating a lost race.
type hidingTx struct {
	repository.Tx
}

func (h *hidingTx) LockBookByTitleAndAuthor(context.Context, string, string) (*model.Book, error) {
	return nil, repository.ErrNotFound
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "id-" + strconv.Itoa(n)
	}
}
