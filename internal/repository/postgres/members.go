package postgres

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/Shivanand-hulikatti/library-lending/internal/model"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository"
)

const memberColumns = `id, name, surname, membership_date`

func scanMember(row interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	if err := row.Scan(&m.ID, &m.Name, &m.Surname, &m.MembershipDate); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMember returns a single member or repository.ErrNotFound.
func (s *Store) GetMember(ctx context.Context, id string) (*model.Member, error) {
	m, err := scanMember(s.db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
	if err != nil {
		return nil, classify(fmt.Errorf("get member: %w", err))
	}
	return m, nil
}

// ListMembers returns one page of members, oldest membership first.
func (s *Store) ListMembers(ctx context.Context, p model.Page) ([]model.Member, int, error) {
	p = p.Normalize()
	base := s.builder.From("members")

	total, err := s.count(ctx, base)
	if err != nil {
		return nil, 0, err
	}

	query, args, err := base.
		Select("id", "name", "surname", "membership_date").
		Order(goqu.I("membership_date").Asc(), goqu.I("id").Asc()).
		Limit(uint(p.Limit())).
		Offset(uint(p.Offset())).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list members query: %w", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, classify(fmt.Errorf("list members: %w", err))
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, total, rows.Err()
}

// LockMember locks the member row. Borrows by the same member serialise on
// it, which keeps the open-loan count stable while the limit is checked.
func (t *txn) LockMember(ctx context.Context, id string) (*model.Member, error) {
	m, err := scanMember(t.q.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, classify(fmt.Errorf("lock member row: %w", err))
	}
	return m, nil
}

func (t *txn) InsertMember(ctx context.Context, m *model.Member) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO members (id, name, surname, membership_date) VALUES ($1, $2, $3, $4)`,
		m.ID, m.Name, m.Surname, m.MembershipDate,
	)
	if err != nil {
		return classify(fmt.Errorf("insert member: %w", err))
	}
	return nil
}

// UpdateMember writes name and surname. membership_date is immutable.
func (t *txn) UpdateMember(ctx context.Context, m *model.Member) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE members SET name = $2, surname = $3 WHERE id = $1`,
		m.ID, m.Name, m.Surname,
	)
	if err != nil {
		return classify(fmt.Errorf("update member: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *txn) DeleteMember(ctx context.Context, id string) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return classify(fmt.Errorf("delete member: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
