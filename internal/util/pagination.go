package util

import "math"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxPage keeps the offset within a signed 32-bit column.
	MaxPage = math.MaxInt32 / MaxPageSize
)

// Calculate turns a 1-based page and a page size into an offset and limit.
// Out of range values fall back to the first page and DefaultPageSize;
// pages past MaxPage are clamped to it.
func Calculate(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return (page - 1) * size, size
}

// PageOf is the inverse of Calculate.
func PageOf(from, limit int) int {
	if limit <= 0 {
		return 1
	}
	return from/limit + 1
}
