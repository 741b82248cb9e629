// Package memory is an in-process repository.Store. Transactions are
// serialised by one mutex and work on a copy of the data that replaces the
// committed state only when the callback succeeds.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/library-lending/internal/model"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository"
)

type state struct {
	books   map[string]model.Book
	members map[string]model.Member
	loans   []model.Loan
}

func (s *state) clone() *state {
	c := &state{
		books:   make(map[string]model.Book, len(s.books)),
		members: make(map[string]model.Member, len(s.members)),
		loans:   make([]model.Loan, len(s.loans)),
	}
	for k, v := range s.books {
		c.books[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	copy(c.loans, s.loans)
	return c
}

// Store keeps books, members and loans in memory.
type Store struct {
	mu   sync.Mutex
	data *state
}

var _ repository.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{data: &state{
		books:   make(map[string]model.Book),
		members: make(map[string]model.Member),
	}}
}

// WithinTx runs fn with exclusive access to a working copy of the data.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&txn{data: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) GetBook(_ context.Context, id string) (*model.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data.books[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (s *Store) ListBooks(_ context.Context, p model.Page) ([]model.Book, int, error) {
	s.mu.Lock()
	books := make([]model.Book, 0, len(s.data.books))
	for _, b := range s.data.books {
		books = append(books, b)
	}
	s.mu.Unlock()

	sort.Slice(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		if books[i].Author != books[j].Author {
			return books[i].Author < books[j].Author
		}
		return books[i].ID < books[j].ID
	})
	page, total := paginate(books, p)
	return page, total, nil
}

func (s *Store) GetMember(_ context.Context, id string) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data.members[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (s *Store) ListMembers(_ context.Context, p model.Page) ([]model.Member, int, error) {
	s.mu.Lock()
	members := make([]model.Member, 0, len(s.data.members))
	for _, m := range s.data.members {
		members = append(members, m)
	}
	s.mu.Unlock()

	sort.Slice(members, func(i, j int) bool {
		if !members[i].MembershipDate.Equal(members[j].MembershipDate) {
			return members[i].MembershipDate.Before(members[j].MembershipDate)
		}
		return members[i].ID < members[j].ID
	})
	page, total := paginate(members, p)
	return page, total, nil
}

func (s *Store) ListLoans(_ context.Context, f model.LoanFilter, p model.Page) ([]model.Loan, int, error) {
	s.mu.Lock()
	var loans []model.Loan
	for _, l := range s.data.loans {
		if f.Match(l) {
			loans = append(loans, l)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(loans, func(i, j int) bool {
		return loans[i].BorrowedAt.After(loans[j].BorrowedAt)
	})
	page, total := paginate(loans, p)
	return page, total, nil
}

func paginate[T any](items []T, p model.Page) ([]T, int) {
	p = p.Normalize()
	total := len(items)
	start := p.Offset()
	if start >= total {
		return nil, total
	}
	end := start + p.Limit()
	if end > total {
		end = total
	}
	return items[start:end], total
}

// txn mutates the working copy. Locks are implicit: the Store mutex is held
// for the whole transaction.
type txn struct {
	data *state
}

var _ repository.Tx = (*txn)(nil)

func (t *txn) LockBook(_ context.Context, id string) (*model.Book, error) {
	b, ok := t.data.books[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (t *txn) LockBookByTitleAndAuthor(_ context.Context, title, author string) (*model.Book, error) {
	for _, b := range t.data.books {
		if b.Title == title && b.Author == author {
			return &b, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *txn) InsertBook(_ context.Context, b *model.Book) error {
	if _, ok := t.data.books[b.ID]; ok {
		return repository.ErrConflict
	}
	if t.titleTaken(b.ID, b.Title, b.Author) {
		return repository.ErrConflict
	}
	t.data.books[b.ID] = *b
	return nil
}

func (t *txn) UpdateBook(_ context.Context, b *model.Book) error {
	if _, ok := t.data.books[b.ID]; !ok {
		return repository.ErrNotFound
	}
	if t.titleTaken(b.ID, b.Title, b.Author) {
		return repository.ErrConflict
	}
	t.data.books[b.ID] = *b
	return nil
}

// titleTaken mirrors the (title, author) unique constraint.
func (t *txn) titleTaken(exceptID, title, author string) bool {
	for id, other := range t.data.books {
		if id != exceptID && other.Title == title && other.Author == author {
			return true
		}
	}
	return false
}

func (t *txn) DeleteBook(_ context.Context, id string) error {
	if _, ok := t.data.books[id]; !ok {
		return repository.ErrNotFound
	}
	delete(t.data.books, id)
	return nil
}

func (t *txn) LockMember(_ context.Context, id string) (*model.Member, error) {
	m, ok := t.data.members[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (t *txn) InsertMember(_ context.Context, m *model.Member) error {
	if _, ok := t.data.members[m.ID]; ok {
		return repository.ErrConflict
	}
	t.data.members[m.ID] = *m
	return nil
}

func (t *txn) UpdateMember(_ context.Context, m *model.Member) error {
	existing, ok := t.data.members[m.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.Name = m.Name
	existing.Surname = m.Surname
	t.data.members[m.ID] = existing
	return nil
}

func (t *txn) DeleteMember(_ context.Context, id string) error {
	if _, ok := t.data.members[id]; !ok {
		return repository.ErrNotFound
	}
	delete(t.data.members, id)
	return nil
}

func (t *txn) openLoans(match func(model.Loan) bool) []model.Loan {
	var out []model.Loan
	for _, l := range t.data.loans {
		if l.IsOpen() && match(l) {
			out = append(out, l)
		}
	}
	return out
}

func (t *txn) OpenLoansForBook(_ context.Context, bookID string) ([]model.Loan, error) {
	return t.openLoans(func(l model.Loan) bool { return l.BookID == bookID }), nil
}

func (t *txn) OpenLoansForMember(_ context.Context, memberID string) ([]model.Loan, error) {
	return t.openLoans(func(l model.Loan) bool { return l.MemberID == memberID }), nil
}

// LockOpenLoan returns the oldest open loan; loans are appended in borrow order.
func (t *txn) LockOpenLoan(_ context.Context, memberID, bookID string) (*model.Loan, error) {
	open := t.openLoans(func(l model.Loan) bool {
		return l.MemberID == memberID && l.BookID == bookID
	})
	if len(open) == 0 {
		return nil, repository.ErrNotFound
	}
	return &open[0], nil
}

func (t *txn) InsertLoan(_ context.Context, l *model.Loan) error {
	if _, ok := t.data.books[l.BookID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := t.data.members[l.MemberID]; !ok {
		return repository.ErrNotFound
	}
	t.data.loans = append(t.data.loans, *l)
	return nil
}

func (t *txn) CloseLoan(_ context.Context, id string, returnedAt time.Time) error {
	for i, l := range t.data.loans {
		if l.ID != id || !l.IsOpen() {
			continue
		}
		t.data.loans[i].Status = model.Closed{ReturnedAt: returnedAt}
		return nil
	}
	return repository.ErrNotFound
}
