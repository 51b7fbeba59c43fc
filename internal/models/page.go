package models

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page selects a window of a newest-first listing. Number is 0-based.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps number and size into range.
func NewPage(number, size int) Page {
	if number < 0 {
		number = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Offset() int {
	return p.Number * p.Size
}

// PageResult is one page of items plus pagination info.
type PageResult[T any] struct {
	Items       []T  `json:"items"`
	Page        int  `json:"page"`
	Size        int  `json:"size"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// NewPageResult fills pagination info for items fetched with p out of total.
func NewPageResult[T any](items []T, p Page, total int) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if p.Size > 0 {
		totalPages = (total + p.Size - 1) / p.Size
	}
	return PageResult[T]{
		Items:       items,
		Page:        p.Number,
		Size:        p.Size,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     p.Number+1 < totalPages,
		HasPrevious: p.Number > 0,
	}
}

// Slice cuts the page window out of a full, already ordered listing.
func Slice[T any](all []T, p Page) PageResult[T] {
	start := p.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + p.Size
	if end > len(all) {
		end = len(all)
	}
	window := make([]T, end-start)
	copy(window, all[start:end])
	return NewPageResult(window, p, len(all))
}
