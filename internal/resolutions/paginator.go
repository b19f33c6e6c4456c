package resolutions

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPageSize indicates a non-positive page size. This is a
	// configuration error and is rejected at construction time.
	ErrInvalidPageSize = errors.New("resolutions: page size must be positive")
	// ErrInvalidViewKey indicates an empty paginated-view identifier.
	ErrInvalidViewKey = errors.New("resolutions: view key must not be empty")
	// ErrMissingCursorStore indicates that no cursor store was supplied.
	ErrMissingCursorStore = errors.New("resolutions: cursor store is required")
)

// CursorStore holds the zero-based page index of each paginated view,
// keyed by view identifier. Implementations live in per-visitor session
// state so independent views never share a cursor.
type CursorStore interface {
	Cursor(viewKey string) int
	SetCursor(viewKey string, page int)
}

// Window describes one evaluated page of a paginated view: the clamped
// page index, the fetch range, and which navigation triggers are enabled.
type Window struct {
	Page        int
	TotalPages  int
	Offset      int
	Limit       int
	HasPrevious bool
	HasNext     bool
}

// Paginator is a pure pagination-state machine over an externally supplied
// item total. It owns no data access; callers fetch with the Window's
// Offset and Limit.
type Paginator struct {
	pageSize int
	viewKey  string
	cursors  CursorStore
}

// NewPaginator constructs a Paginator for one paginated view.
func NewPaginator(pageSize int, viewKey string, cursors CursorStore) (*Paginator, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageSize, pageSize)
	}
	if viewKey == "" {
		return nil, ErrInvalidViewKey
	}
	if cursors == nil {
		return nil, ErrMissingCursorStore
	}
	return &Paginator{pageSize: pageSize, viewKey: viewKey, cursors: cursors}, nil
}

// PageCount reports the number of pages needed for total items, never less
// than one: an empty view still renders a single empty page.
func PageCount(total, pageSize int) int {
	if total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// Paginate evaluates the view against the current item total. The stored
// cursor is clamped into [0, totalPages-1] and the clamp is written back,
// so a shrinking total can never strand the visitor on an unreachable page.
func (p *Paginator) Paginate(total int) Window {
	totalPages := PageCount(total, p.pageSize)

	page := p.cursors.Cursor(p.viewKey)
	clamped := clampPage(page, totalPages)
	if clamped != page {
		p.cursors.SetCursor(p.viewKey, clamped)
	}

	return Window{
		Page:        clamped,
		TotalPages:  totalPages,
		Offset:      clamped * p.pageSize,
		Limit:       p.pageSize,
		HasPrevious: clamped > 0,
		HasNext:     clamped < totalPages-1,
	}
}

// Next advances the cursor by one page and reports whether it moved. The
// move is only observable through a subsequent Paginate call: a page change
// is a full re-evaluation, never a partial patch.
func (p *Paginator) Next(total int) bool {
	window := p.Paginate(total)
	if !window.HasNext {
		return false
	}
	p.cursors.SetCursor(p.viewKey, window.Page+1)
	return true
}

// Previous moves the cursor back by one page and reports whether it moved.
func (p *Paginator) Previous(total int) bool {
	window := p.Paginate(total)
	if !window.HasPrevious {
		return false
	}
	p.cursors.SetCursor(p.viewKey, window.Page-1)
	return true
}

func clampPage(page, totalPages int) int {
	if page < 0 {
		return 0
	}
	if page > totalPages-1 {
		return totalPages - 1
	}
	return page
}
