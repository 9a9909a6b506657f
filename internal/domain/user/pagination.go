package user

import "math"

// MaxPageLimit is the largest number of users returned in a single page.
const MaxPageLimit int64 = 50

// Pagination represents pagination information for list responses.
type Pagination struct {
	Total      int64 // Total number of records
	Page       int64 // Current page number (1-based)
	Limit      int64 // Number of records per page
	TotalPages int64 // Total number of pages
}

// NewPagination creates a new Pagination instance with calculated total pages.
func NewPagination(total, page, limit int64) *Pagination {
	totalPages := limit
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}

	return &Pagination{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}

// ClampLimit caps a requested page size at MaxPageLimit.
func ClampLimit(limit int64) int64 {
	if limit < MaxPageLimit {
		return limit
	}
	return MaxPageLimit
}

// Offset returns the number of records preceding the given 1-based page.
// ok is false when the offset does not fit in an int64.
func Offset(page, limit int64) (offset int64, ok bool) {
	if page < 1 || limit < 1 {
		return 0, true
	}
	if page-1 > math.MaxInt64/limit {
		return 0, false
	}
	return (page - 1) * limit, true
}
