package common

import (
	"net/http"
	"strconv"
)

// Page-based listing defaults. page_size is capped so a single request
// cannot ask the store for an unbounded scan.
const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// PaginationParams represents pagination parameters
type PaginationParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Sort     string `json:"sort,omitempty"`
	Order    string `json:"order,omitempty"`
}

// ExtractPaginationParams reads page, page_size, sort and order from the
// query string. Missing or malformed values fall back to the defaults;
// order accepts only asc or desc.
func ExtractPaginationParams(r *http.Request) PaginationParams {
	q := r.URL.Query()

	params := PaginationParams{
		Page:     defaultPage,
		PageSize: defaultPageSize,
		Order:    "desc",
	}

	if page := queryInt(q.Get("page")); page > 0 {
		params.Page = page
	}
	if size := queryInt(q.Get("page_size")); size > 0 {
		params.PageSize = min(size, maxPageSize)
	}

	params.Sort = q.Get("sort")

	switch q.Get("order") {
	case "asc":
		params.Order = "asc"
	case "desc":
		params.Order = "desc"
	}

	return params
}

// queryInt parses a query value, returning 0 when absent or malformed
func queryInt(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

// CalculateOffset calculates the offset for database queries
func (p PaginationParams) CalculateOffset() int {
	return (p.Page - 1) * p.PageSize
}

// CalculateTotalPages calculates total number of pages
func CalculateTotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	pages := total / pageSize
	if total%pageSize > 0 {
		pages++
	}
	return pages
}

// BuildPaginationMeta builds pagination metadata
func BuildPaginationMeta(page, pageSize, total int) *PaginationInfo {
	totalPages := CalculateTotalPages(total, pageSize)

	return &PaginationInfo{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
