// Package model defines the core domain types for the library lending system.
package model

import (
	"time"
)

// Book is a title+author pair with a fungible count of copies on the shelf.
type Book struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Amount int    `json:"amount"`
}

// Available returns true when at least one copy is on the shelf.
func (b *Book) Available() bool {
	return b.Amount > 0
}

// Member represents a registered library member.
type Member struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Surname        string    `json:"surname"`
	MembershipDate time.Time `json:"membership_date"`
}

// CreateBookRequest is the payload for registering a copy of a book.
type CreateBookRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// UpdateBookRequest carries a partial book update. Nil fields are left unchanged.
type UpdateBookRequest struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
}

// CreateMemberRequest is the payload for registering a member.
type CreateMemberRequest struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
}

// UpdateMemberRequest carries a partial member update. Nil fields are left unchanged.
type UpdateMemberRequest struct {
	Name    *string `json:"name"`
	Surname *string `json:"surname"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
