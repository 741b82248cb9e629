package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/library-lending/internal/database"
	"github.com/Shivanand-hulikatti/library-lending/internal/model"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository/postgres"
	"github.com/Shivanand-hulikatti/library-lending/internal/service"
)

// connect returns a store on a freshly migrated and emptied database, or
// skips the test when LIBRARY_TEST_DATABASE_URL is not set.
func connect(t *testing.T) (context.Context, *postgres.Store) {
	t.Helper()

	dsn := os.Getenv("LIBRARY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LIBRARY_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE books, members, loans`)
	require.NoError(t, err)

	return ctx, postgres.New(pool, postgres.WithLockTimeout(5*time.Second))
}

func Test_Postgres_BorrowAndReturn(t *testing.T) {
	// arrange
	ctx, store := connect(t)
	svc := service.NewCoordinator(store, 10)

	book, err := svc.RegisterBook(ctx, model.CreateBookRequest{Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)
	book, err = svc.RegisterBook(ctx, model.CreateBookRequest{Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)
	member, err := svc.RegisterMember(ctx, model.CreateMemberRequest{Name: "Paul", Surname: "Atreides"})
	require.NoError(t, err)

	// act
	loan, err := svc.Borrow(ctx, book.ID, member.ID)
	require.NoError(t, err)
	returned, err := svc.Return(ctx, book.ID, member.ID)
	require.NoError(t, err)
	_, secondReturn := svc.Return(ctx, book.ID, member.ID)

	// assert
	assert.Equal(t, loan.ID, returned.ID)
	assert.False(t, returned.IsOpen())
	assert.ErrorIs(t, secondReturn, service.ErrNoOpenLoan)

	stored, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Amount)

	loans, meta, err := svc.ListMemberLoans(ctx, member.ID, false, model.Page{})
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, 1, meta.TotalRecords)
	at, closed := loans[0].ReturnedAt()
	require.True(t, closed)
	assert.False(t, at.Before(loans[0].BorrowedAt))
}

func Test_Postgres_ConcurrentBorrowsOfLastCopy(t *testing.T) {
	// arrange
	ctx, store := connect(t)
	svc := service.NewCoordinator(store, 10)

	book, err := svc.RegisterBook(ctx, model.CreateBookRequest{Title: "Dune", Author: "Frank Herbert"})
	require.NoError(t, err)

	const workers = 8
	members := make([]*model.Member, workers)
	for i := range members {
		members[i], err = svc.RegisterMember(ctx, model.CreateMemberRequest{Name: "Reader", Surname: "Concurrent"})
		require.NoError(t, err)
	}

	// act
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		successes   int
		unavailable int
	)
	for _, m := range members {
		wg.Add(1)
		go func(memberID string) {
			defer wg.Done()
			_, err := svc.Borrow(ctx, book.ID, memberID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, service.ErrBookUnavailable):
				unavailable++
			}
		}(m.ID)
	}
	wg.Wait()

	// assert
	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, unavailable)

	stored, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Amount)
}

func Test_Postgres_WithinTxRollsBack(t *testing.T) {
	ctx, store := connect(t)
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		b := &model.Book{ID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8", Title: "Dune", Author: "Frank Herbert", Amount: 1}
		require.NoError(t, tx.InsertBook(ctx, b))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	_, err = store.GetBook(ctx, "6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func Test_Postgres_UniqueTitleAndAuthorIsConflict(t *testing.T) {
	ctx, store := connect(t)

	err := store.WithinTx(ctx, func(tx repository.Tx) error {
		require.NoError(t, tx.InsertBook(ctx, &model.Book{ID: "6ba7b810-9dad-11d1-80b4-00c04fd430c8", Title: "Dune", Author: "Frank Herbert"}))
		return tx.InsertBook(ctx, &model.Book{ID: "6ba7b811-9dad-11d1-80b4-00c04fd430c8", Title: "Dune", Author: "Frank Herbert"})
	})

	assert.ErrorIs(t, err, repository.ErrConflict)
}
