// Package pagination computes list windows and navigation buttons for
// paginated button grids. Page numbers travel through user-tappable buttons,
// so out-of-range requests are a normal case and are clamped, never rejected:
// a stale button pointing at a deleted page must not break the conversation.
package pagination

import (
	"groupbot/core/dialog/reply"
	"groupbot/core/dialog/route"
)

// Page is the derived window for one listing request.
type Page struct {
	Offset  int
	Limit   int
	Current int
	Total   int
	HasPrev bool
	HasNext bool
}

// Paginate clamps requested into [1, totalPages] and derives the window.
// pageSize below 1 is treated as 1.
func Paginate(totalCount, pageSize, requested int) Page {
	if pageSize < 1 {
		pageSize = 1
	}
	if totalCount < 0 {
		totalCount = 0
	}

	totalPages := (totalCount + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}
	if requested < 1 {
		requested = 1
	}
	if requested > totalPages {
		requested = totalPages
	}

	return Page{
		Offset:  (requested - 1) * pageSize,
		Limit:   pageSize,
		Current: requested,
		Total:   totalPages,
		HasPrev: requested > 1,
		HasNext: requested < totalPages,
	}
}

const (
	prevLabel = "◀️"
	nextLabel = "▶️"
)

// NavButtons builds the prev/next row for a page. The factory binds the call
// site's handler and base params to a page number; this package never knows
// about handler identities. The row is empty when there is a single page.
func NavButtons(p Page, factory func(page int) route.Route) ([]reply.Button, error) {
	if p.Total <= 1 {
		return nil, nil
	}

	var row []reply.Button
	if p.HasPrev {
		b, err := reply.NewButton(factory(p.Current-1), prevLabel)
		if err != nil {
			return nil, err
		}
		row = append(row, b)
	}
	if p.HasNext {
		b, err := reply.NewButton(factory(p.Current+1), nextLabel)
		if err != nil {
			return nil, err
		}
		row = append(row, b)
	}
	return row, nil
}
