package ordering

import (
	"slices"
	"testing"

	"github.com/emrgen/rard/internal/model"
	"github.com/stretchr/testify/assert"
)

func ids[K any](keys []K, id func(K) uint) []uint {
	out := make([]uint, 0, len(keys))
	for _, k := range keys {
		out = append(out, id(k))
	}
	return out
}

func TestCompareWorkLinks(t *testing.T) {
	keys := []WorkLinkKey{
		{Order: 0, Unknown: true},
		{Order: 2},
		{Order: 1},
	}
	slices.SortStableFunc(keys, CompareWorkLinks)
	assert.Equal(t, []WorkLinkKey{{Order: 1}, {Order: 2}, {Order: 0, Unknown: true}}, keys)
}

func TestCompareBooks(t *testing.T) {
	keys := []BookKey{
		{ID: 1, Order: 0, Unknown: true},
		{ID: 2, Order: 1, Number: model.Ptr(3)},
		{ID: 3, Order: 1},
		{ID: 4, Order: 1, Number: model.Ptr(2)},
		{ID: 5, Order: 0, Number: model.Ptr(9)},
	}
	slices.SortStableFunc(keys, CompareBooks)
	assert.Equal(t, []uint{5, 4, 2, 3, 1}, ids(keys, func(k BookKey) uint { return k.ID }))
}

func linkKeys() []LinkKey {
	return []LinkKey{
		{ID: 1, HasWork: false, Order: 1},
		{ID: 2, HasWork: true, UnknownWork: true, WorkRank: Unranked, WorkID: 9, WorkOrder: 0},
		{ID: 3, HasWork: true, WorkRank: 1, WorkID: 5, WorkOrder: 0},
		{ID: 4, HasWork: true, WorkRank: 0, WorkID: 6, WorkOrder: 1},
		{ID: 5, HasWork: true, WorkRank: 0, WorkID: 6, WorkOrder: 0},
		{ID: 6, HasWork: false, Order: 0},
	}
}

func TestCompareFragmentLinks(t *testing.T) {
	keys := linkKeys()
	slices.SortStableFunc(keys, CompareFragmentLinks)
	assert.Equal(t, []uint{5, 4, 3, 2, 6, 1}, ids(keys, func(k LinkKey) uint { return k.ID }))
}

func TestCompareTestimoniumLinks(t *testing.T) {
	keys := linkKeys()
	slices.SortStableFunc(keys, CompareTestimoniumLinks)
	assert.Equal(t, []uint{6, 1, 2, 5, 4, 3}, ids(keys, func(k LinkKey) uint { return k.ID }))
}

func TestLinkComparator(t *testing.T) {
	noWork := LinkKey{ID: 1}
	known := LinkKey{ID: 2, HasWork: true}

	for _, kind := range []model.EvidenceKind{model.KindFragment, model.KindAppositum} {
		assert.Positive(t, LinkComparator(kind)(noWork, known), kind)
	}
	assert.Negative(t, LinkComparator(model.KindTestimonium)(noWork, known))
}

func TestComparePositions(t *testing.T) {
	keys := []PositionKey{
		{ID: 3},
		{ID: 1, Position: model.Ptr(1)},
		{ID: 2, Position: model.Ptr(1)},
		{ID: 4, Position: model.Ptr(0)},
	}
	slices.SortStableFunc(keys, ComparePositions)
	assert.Equal(t, []uint{4, 1, 2, 3}, ids(keys, func(k PositionKey) uint { return k.ID }))
}

func TestCompareBookGroups(t *testing.T) {
	keys := []BookGroupKey{
		{ID: 1, BookRank: Unranked, WorkOrder: 0},
		{ID: 2, BookRank: 1, OrderInBook: model.Ptr(0), WorkOrder: 1},
		{ID: 3, BookRank: 0, OrderInBook: model.Ptr(1), WorkOrder: 2},
		{ID: 4, BookRank: 0, OrderInBook: model.Ptr(0), WorkOrder: 3},
	}
	slices.SortStableFunc(keys, CompareBookGroups)
	assert.Equal(t, []uint{4, 3, 2, 1}, ids(keys, func(k BookGroupKey) uint { return k.ID }))
}
