package domain

import "math"

// PageRequest selects one page of a listing. A PageIndex or ItemsPerPage
// below 1 requests everything as a single page.
type PageRequest struct {
	PageIndex    int64
	ItemsPerPage int64
	RangeOfPages int64 // pages shown on each side of the current one
}

// All returns a request for every item on one page.
func All() PageRequest {
	return PageRequest{}
}

// Paged reports whether the request limits the result set.
func (r PageRequest) Paged() bool {
	return r.PageIndex >= 1 && r.ItemsPerPage >= 1
}

// Offset is the number of items skipped before the page. It saturates at
// math.MaxInt64 instead of wrapping.
func (r PageRequest) Offset() int64 {
	if !r.Paged() {
		return 0
	}
	if r.PageIndex-1 > math.MaxInt64/r.ItemsPerPage {
		return math.MaxInt64
	}
	return (r.PageIndex - 1) * r.ItemsPerPage
}

// PagingInfo describes where a page sits in the full result set.
type PagingInfo struct {
	PageIndex    int64
	ItemsPerPage int64
	TotalItems   int64
	RangeOfPages int64
}

// NewPagingInfo normalizes an unpaged request to a single page holding every
// item.
func NewPagingInfo(req PageRequest, totalItems int64) PagingInfo {
	p := PagingInfo{
		PageIndex:    req.PageIndex,
		ItemsPerPage: req.ItemsPerPage,
		TotalItems:   totalItems,
		RangeOfPages: req.RangeOfPages,
	}
	if !req.Paged() {
		p.PageIndex = 1
		p.ItemsPerPage = totalItems
	}
	if p.RangeOfPages < 0 {
		p.RangeOfPages = 0
	}
	return p
}

func (p PagingInfo) TotalPages() int64 {
	if p.ItemsPerPage <= 0 {
		return 1
	}
	pages := p.TotalItems / p.ItemsPerPage
	if p.TotalItems%p.ItemsPerPage != 0 {
		pages++
	}
	return pages
}

// StartIndex is the first page of the navigation window.
func (p PagingInfo) StartIndex() int64 {
	return max(p.PageIndex-p.RangeOfPages, 1)
}

// FinishIndex is the last page of the navigation window.
func (p PagingInfo) FinishIndex() int64 {
	return min(saturatingAdd(p.PageIndex, p.RangeOfPages), p.TotalPages())
}

func (p PagingInfo) HasNextPage() bool {
	return p.PageIndex < p.TotalPages()
}

func (p PagingInfo) HasPreviousPage() bool {
	return p.PageIndex > 1
}

// PageIndexItems is the number of items on the current page.
func (p PagingInfo) PageIndexItems() int64 {
	if p.ItemsPerPage <= 0 {
		return p.TotalItems
	}
	if p.HasNextPage() {
		return p.ItemsPerPage
	}
	if p.PageIndex > p.TotalPages() {
		return 0
	}
	remainder := p.TotalItems % p.ItemsPerPage
	if remainder == 0 && p.TotalItems > 0 {
		return p.ItemsPerPage
	}
	return remainder
}

// Paginated is one page of items with its position.
type Paginated[T any] struct {
	Items  []T
	Paging PagingInfo
}

// NewPaginated wraps an already sliced page. totalItems is raised to
// len(items) if the store under-reported it.
func NewPaginated[T any](items []T, totalItems int64, req PageRequest) Paginated[T] {
	if n := int64(len(items)); n > totalItems {
		totalItems = n
	}
	if items == nil {
		items = []T{}
	}
	return Paginated[T]{Items: items, Paging: NewPagingInfo(req, totalItems)}
}

// Paginate slices a complete in-memory result set.
func Paginate[T any](all []T, req PageRequest) Paginated[T] {
	total := int64(len(all))
	if !req.Paged() {
		return NewPaginated(all, total, req)
	}

	start := min(req.Offset(), total)
	end := min(saturatingAdd(start, req.ItemsPerPage), total)
	return NewPaginated(all[start:end], total, req)
}

func saturatingAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// MapPaginated converts the items of a page, keeping its position.
func MapPaginated[T, U any](p Paginated[T], fn func(T) U) Paginated[U] {
	out := make([]U, len(p.Items))
	for i, item := range p.Items {
		out[i] = fn(item)
	}
	return Paginated[U]{Items: out, Paging: p.Paging}
}
