package service

import (
	"context"
	"errors"
	"time"

	"github.com/Shivanand-hulikatti/library-lending/internal/model"
	"github.com/Shivanand-hulikatti/library-lending/internal/repository"
)

// MemberRegistry owns member identity inside one transaction.
type MemberRegistry struct {
	tx    repository.Tx
	newID func() string
	now   func() time.Time
}

// Lock returns the member with its row locked for the rest of the transaction.
func (r MemberRegistry) Lock(ctx context.Context, memberID string) (*model.Member, error) {
	m, err := r.tx.LockMember(ctx, memberID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, memberErr(ErrMemberNotFound, memberID)
		}
		return nil, err
	}
	return m, nil
}

// Register creates a member whose membership starts now.
func (r MemberRegistry) Register(ctx context.Context, name, surname string) (*model.Member, error) {
	m := &model.Member{
		ID:             r.newID(),
		Name:           name,
		Surname:        surname,
		MembershipDate: r.now(),
	}
	if err := r.tx.InsertMember(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Rename changes name and/or surname of a locked member.
func (r MemberRegistry) Rename(ctx context.Context, m *model.Member, req model.UpdateMemberRequest) error {
	if req.Name != nil {
		m.Name = *req.Name
	}
	if req.Surname != nil {
		m.Surname = *req.Surname
	}
	return r.tx.UpdateMember(ctx, m)
}

// Remove deletes the member unless openLoans is positive.
func (r MemberRegistry) Remove(ctx context.Context, memberID string, openLoans int) error {
	if openLoans > 0 {
		return memberErr(ErrHasOpenLoans, memberID)
	}
	if err := r.tx.DeleteMember(ctx, memberID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return memberErr(ErrMemberNotFound, memberID)
		}
		return err
	}
	return nil
}

// CanBorrow reports whether a member holding openLoanCount loans may take one more.
func CanBorrow(openLoanCount, limit int) bool {
	return openLoanCount < limit
}
