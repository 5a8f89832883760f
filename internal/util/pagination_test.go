package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name       string
		page, size int
		from, lim  int
	}{
		{"first page", 1, 20, 0, 20},
		{"third page", 3, 5, 10, 5},
		{"page below one", 0, 5, 0, 5},
		{"size defaults", 2, 0, 10, 10},
		{"size capped", 1, 500, 0, 10},
		{"page clamped", MaxPage + 1, 100, (MaxPage - 1) * 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, lim := Calculate(tt.page, tt.size)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.lim, lim)
		})
	}
}

func TestPageOf(t *testing.T) {
	for _, page := range []int{1, 2, 7} {
		from, lim := Calculate(page, 25)
		assert.Equal(t, page, PageOf(from, lim))
	}
	assert.Equal(t, 1, PageOf(0, 0))
}

func TestCalculate_HugePageDoesNotOverflow(t *testing.T) {
	for _, size := range []int{1, DefaultPageSize, MaxPageSize} {
		from, lim := Calculate(math.MaxInt, size)
		assert.GreaterOrEqual(t, from, 0)
		assert.LessOrEqual(t, from+lim, math.MaxInt32)
	}
}
