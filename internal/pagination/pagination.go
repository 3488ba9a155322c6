package pagination

import "gorm.io/gorm"

const (
	// DefaultLimit is used when no limit is supplied.
	DefaultLimit = 50
	// MaxLimit caps the number of items a single page may return.
	MaxLimit = 500
)

// PageRequest holds limit/offset pagination parameters parsed from query strings.
type PageRequest struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// Defaults fills in default values and clamps the limit.
func (p *PageRequest) Defaults() {
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}

// PageResponse wraps a paginated list of items with metadata. Total is the
// number of matches before pagination, so callers can render page controls.
type PageResponse[T any] struct {
	Data   []T   `json:"data"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

// NewPageResponse creates a PageResponse from the given data and total count.
func NewPageResponse[T any](data []T, limit, offset int, total int64) PageResponse[T] {
	if data == nil {
		data = []T{}
	}
	return PageResponse[T]{
		Data:   data,
		Limit:  limit,
		Offset: offset,
		Total:  total,
	}
}

// Paginate returns a GORM scope that applies OFFSET and LIMIT for the given page request.
func Paginate(req PageRequest) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(req.Offset).Limit(req.Limit)
	}
}
