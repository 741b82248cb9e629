package service_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/library-lending/internal/model"
	"github.com/Shivanand-hulikatti/library-lending/internal/service"
)

// Test_RandomOperations_KeepLedgersConsistent runs a seeded random mix of
// registrations, borrows and returns and checks the ledgers after every step.
func Test_RandomOperations_KeepLedgersConsistent(t *testing.T) {
	// arrange
	const (
		limit = 3
		steps = 400
	)
	ctx, svc, _ := setup(t, limit)
	rnd := rand.New(rand.NewSource(42))

	titles := []string{"Dune", "Emma", "Ulysses", "Beloved"}
	registered := map[string]int{}
	var books []*model.Book
	var members []*model.Member
	for i := 0; i < 4; i++ {
		members = append(members, givenMember(ctx, t, svc))
	}

	for step := 0; step < steps; step++ {
		// act
		switch op := rnd.Intn(10); {
		case op < 2 || len(books) == 0:
			b, err := svc.RegisterBook(ctx, model.CreateBookRequest{
				Title:  titles[rnd.Intn(len(titles))],
				Author: "Some Author",
			})
			require.NoError(t, err)
			if registered[b.ID] == 0 {
				books = append(books, b)
			}
			registered[b.ID]++
		case op < 6:
			b := books[rnd.Intn(len(books))]
			m := members[rnd.Intn(len(members))]
			_, err := svc.Borrow(ctx, b.ID, m.ID)
			if err != nil {
				require.True(t, service.IsDomain(err), "step %d: %v", step, err)
				assert.True(t,
					errors.Is(err, service.ErrBookUnavailable) || errors.Is(err, service.ErrBorrowLimitExceeded),
					"step %d: unexpected borrow failure %v", step, err)
			}
		default:
			b := books[rnd.Intn(len(books))]
			m := members[rnd.Intn(len(members))]
			_, err := svc.Return(ctx, b.ID, m.ID)
			if err != nil {
				assert.ErrorIs(t, err, service.ErrNoOpenLoan, "step %d", step)
			}
		}

		// assert
		assertConsistent(ctx, t, svc, step, limit, registered, members)
	}
}

func assertConsistent(ctx context.Context, t *testing.T, svc *service.Coordinator, step, limit int, registered map[string]int, members []*model.Member) {
	t.Helper()

	for bookID, copies := range registered {
		book, err := svc.GetBook(ctx, bookID)
		require.NoError(t, err)
		open, _, err := svc.ListLoans(ctx, model.LoanFilter{BookID: bookID, OpenOnly: true}, model.Page{Size: model.MaxPageSize})
		require.NoError(t, err)

		require.GreaterOrEqual(t, book.Amount, 0, "step %d: negative amount", step)
		require.Equal(t, copies, book.Amount+len(open), "step %d: copies of %s lost or duplicated", step, bookID)
	}

	for _, m := range members {
		open, _, err := svc.ListMemberLoans(ctx, m.ID, true, model.Page{Size: model.MaxPageSize})
		require.NoError(t, err)
		require.LessOrEqual(t, len(open), limit, "step %d: member %s over the limit", step, m.ID)
	}
}
