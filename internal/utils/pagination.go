// Package utils provides small, generic helpers shared by the HTTP and
// service layers. They carry no pacing logic.
package utils

import "strconv"

// Page bounds applied to list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ParsePage reads raw page and page_size query values and clamps them to
// page >= 1 and 1 <= size <= MaxPageSize. Missing values use page 1 and
// DefaultPageSize.
func ParsePage(pageRaw, sizeRaw string) (page, size int) {
	return ClampPage(AtoiDefault(pageRaw, 1), AtoiDefault(sizeRaw, DefaultPageSize))
}

// ClampPage forces page >= 1 and 1 <= size <= MaxPageSize.
func ClampPage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// Offset returns the row offset of page for size.
func Offset(page, size int) int {
	return (page - 1) * size
}

// TotalPages returns ceil(total/size), 0 when size is not positive.
func TotalPages(total int64, size int) int {
	if size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
