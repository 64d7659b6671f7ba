package reportquery

// DefaultPageSize is used when a caller asks for a non-positive page size.
const DefaultPageSize = 10

// Page is one slice of a list plus the numbers a pager control needs.
// Indexes are zero-based and inclusive.
type Page[T any] struct {
	Items       []T `json:"items"`
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	StartIndex  int `json:"startIndex"`
	EndIndex    int `json:"endIndex"`
	TotalItems  int `json:"totalItems"`
}

// TotalPages is ceil(n/perPage), never less than 1.
func TotalPages(n, perPage int) int {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	pages := (n + perPage - 1) / perPage
	if pages < 1 {
		return 1
	}
	return pages
}

// Paginate returns page of items. A page past the end falls back to page 1,
// and the slice is cut for the corrected page.
func Paginate[T any](items []T, perPage, page int) Page[T] {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	n := len(items)
	total := TotalPages(n, perPage)
	if page < 1 || page > total {
		page = 1
	}

	start := (page - 1) * perPage
	end := start + perPage - 1
	if end > n-1 {
		end = n - 1
	}
	if end < 0 {
		end = 0
	}

	out := make([]T, 0, perPage)
	if n > 0 {
		out = append(out, items[start:end+1]...)
	}
	return Page[T]{
		Items:       out,
		CurrentPage: page,
		TotalPages:  total,
		StartIndex:  start,
		EndIndex:    end,
		TotalItems:  n,
	}
}

// Pager remembers the current page of a list across calls.
type Pager struct {
	PerPage int
	page    int
}

func NewPager(perPage int) *Pager {
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	return &Pager{PerPage: perPage, page: 1}
}

// Page returns the current page number.
func (p *Pager) Page() int {
	if p.page < 1 {
		return 1
	}
	return p.page
}

// SetPage clamps n into [1, total pages of an n-item list] and stores it.
func (p *Pager) SetPage(n, itemCount int) int {
	total := TotalPages(itemCount, p.PerPage)
	switch {
	case n < 1:
		n = 1
	case n > total:
		n = total
	}
	p.page = n
	return n
}

func (p *Pager) Next(itemCount int) int { return p.SetPage(p.Page()+1, itemCount) }

func (p *Pager) Prev(itemCount int) int { return p.SetPage(p.Page()-1, itemCount) }

// ApplyPager pages items at the stored page. A stored page that no longer exists
// (the list shrank) is reset to 1.
func ApplyPager[T any](p *Pager, items []T) Page[T] {
	pg := Paginate(items, p.PerPage, p.Page())
	p.page = pg.CurrentPage
	return pg
}
