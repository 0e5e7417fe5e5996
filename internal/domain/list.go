package domain

// Pagination defaults applied by NormalizeList.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// SortOrder is the direction of a list query.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListParams carries pagination and sorting for list queries.
type ListParams struct {
	Limit     int       `json:"limit"`
	Skip      int       `json:"skip"`
	SortBy    string    `json:"sort_by"`
	SortOrder SortOrder `json:"sort_order"`
}

// Normalize clamps the pagination values and falls back to defaultSort when
// SortBy is not one of the allowed columns.
func (p ListParams) Normalize(defaultSort string, allowed ...string) ListParams {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.SortOrder != SortAsc {
		p.SortOrder = SortDesc
	}
	ok := false
	for _, a := range allowed {
		if p.SortBy == a {
			ok = true
			break
		}
	}
	if !ok {
		p.SortBy = defaultSort
	}
	return p
}

// Pagination describes the position of a page within the full result set.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Skip    int  `json:"skip"`
	HasMore bool `json:"hasMore"`
}

// Page is the paginated envelope returned by list operations.
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// NewPage builds a Page and derives HasMore.
func NewPage[T any](items []T, total int, p ListParams) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Data: items,
		Pagination: Pagination{
			Total:   total,
			Limit:   p.Limit,
			Skip:    p.Skip,
			HasMore: p.Skip+len(items) < total,
		},
	}
}
