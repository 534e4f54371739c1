package storefront_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

func line(price, qty int64) *storefront.CartLine {
	return &storefront.CartLine{ID: uuid.New(), UnitPriceSnapshot: price, Quantity: qty}
}

func TestComputeTotal(t *testing.T) {
	a, b, c := line(1000, 5), line(250, 2), line(99, 1)
	lines := []*storefront.CartLine{a, b, c}

	tests := []struct {
		name     string
		selected []uuid.UUID
		want     int64
	}{
		{name: "empty selection", selected: nil, want: 0},
		{name: "empty slice", selected: []uuid.UUID{}, want: 0},
		{name: "single line", selected: []uuid.UUID{a.ID}, want: 5000},
		{name: "subset", selected: []uuid.UUID{a.ID, c.ID}, want: 5099},
		{name: "all", selected: []uuid.UUID{a.ID, b.ID, c.ID}, want: 5599},
		{name: "unknown ids ignored", selected: []uuid.UUID{uuid.New(), b.ID}, want: 500},
		{name: "duplicates count once", selected: []uuid.UUID{b.ID, b.ID, b.ID}, want: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, storefront.ComputeTotal(lines, tt.selected))
		})
	}
}

func TestComputeTotal_OrderIndependent(t *testing.T) {
	a, b, c := line(1000, 1), line(333, 3), line(7, 11)
	selected := []uuid.UUID{a.ID, b.ID, c.ID}
	want := storefront.ComputeTotal([]*storefront.CartLine{a, b, c}, selected)

	permutations := [][]*storefront.CartLine{
		{a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}
	for _, p := range permutations {
		assert.Equal(t, want, storefront.ComputeTotal(p, selected))
	}
	assert.Equal(t, want, storefront.ComputeTotal([]*storefront.CartLine{a, b, c}, []uuid.UUID{c.ID, a.ID, b.ID}))
}

func TestComputeTotal_NoLines(t *testing.T) {
	assert.Equal(t, int64(0), storefront.ComputeTotal(nil, []uuid.UUID{uuid.New()}))
	assert.Equal(t, int64(0), storefront.ComputeTotal([]*storefront.CartLine{nil}, []uuid.UUID{uuid.New()}))
}
