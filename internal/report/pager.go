// Package report holds the derived operations over normalized report data:
// pagination, CSV export, category filtering and date formatting.
package report

import "github.com/pavelanni/examreports/internal/model"

// DefaultPageSize is the user report page size when none is configured.
const DefaultPageSize = 25

// Pager tracks the user report's page position. TotalPages is derived on
// every call; only Next and Prev move the page, and only within range.
type Pager struct {
	state model.PagerState
}

// NewPager returns a pager on page 1 with the given page size.
func NewPager(pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{state: model.PagerState{CurrentPage: 1, PageSize: pageSize}}
}

// State returns a copy of the pager state.
func (p *Pager) State() model.PagerState { return p.state }

// TotalPages returns max(1, ceil(total/pageSize)).
func (p *Pager) TotalPages() int {
	n := (p.state.Total + p.state.PageSize - 1) / p.state.PageSize
	if n < 1 {
		return 1
	}
	return n
}

// SetTotal records the server-side row count.
func (p *Pager) SetTotal(total int) {
	if total < 0 {
		total = 0
	}
	p.state.Total = total
}

// Load records that page was requested. Pages below 1 load page 1.
func (p *Pager) Load(page int) int {
	if page < 1 {
		page = 1
	}
	p.state.CurrentPage = page
	return page
}

// Next returns the following page and whether moving there is legal.
func (p *Pager) Next() (int, bool) {
	target := p.state.CurrentPage + 1
	if target > p.TotalPages() {
		return p.state.CurrentPage, false
	}
	return target, true
}

// Prev returns the preceding page and whether moving there is legal.
func (p *Pager) Prev() (int, bool) {
	target := p.state.CurrentPage - 1
	if target < 1 {
		return p.state.CurrentPage, false
	}
	return target, true
}

// Reset returns to page 1 with no rows.
func (p *Pager) Reset() {
	p.state.CurrentPage = 1
	p.state.Total = 0
}
