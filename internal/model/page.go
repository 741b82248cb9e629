package model

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a 1-indexed window of a list.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page into valid bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Limit returns the SQL LIMIT for the page.
func (p Page) Limit() int { return p.Size }

// Offset returns the SQL OFFSET for the page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// Metadata contains pagination information returned alongside list responses.
type Metadata struct {
	CurrentPage  int `json:"current_page,omitempty"`
	PageSize     int `json:"page_size,omitempty"`
	FirstPage    int `json:"first_page,omitempty"`
	LastPage     int `json:"last_page,omitempty"`
	TotalRecords int `json:"total_records,omitempty"`
}

// NewMetadata computes page metadata from the total record count.
func NewMetadata(totalRecords int, p Page) Metadata {
	if totalRecords == 0 {
		return Metadata{}
	}
	return Metadata{
		CurrentPage:  p.Number,
		PageSize:     p.Size,
		FirstPage:    1,
		LastPage:     int(math.Ceil(float64(totalRecords) / float64(p.Size))),
		TotalRecords: totalRecords,
	}
}

// LoanFilter narrows a loan listing. Empty ids match everything.
type LoanFilter struct {
	BookID   string
	MemberID string
	OpenOnly bool
}

// Match reports whether l passes the filter.
func (f LoanFilter) Match(l Loan) bool {
	if f.BookID != "" && l.BookID != f.BookID {
		return false
	}
	if f.MemberID != "" && l.MemberID != f.MemberID {
		return false
	}
	return !f.OpenOnly || l.IsOpen()
}
