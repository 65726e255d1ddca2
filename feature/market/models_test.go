package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollapseTags(t *testing.T) {
	tests := []struct {
		name      string
		tags      []Tag
		want      Tag
		expectErr bool
	}{
		{
			name: "empty list",
			tags: nil,
			want: TagNone,
		},
		{
			name: "new is dropped",
			tags: []Tag{TagNew},
			want: TagNone,
		},
		{
			name: "single generic",
			tags: []Tag{TagPopular},
			want: TagPopular,
		},
		{
			name: "state beats generic",
			tags: []Tag{TagPopular, TagSoldOut},
			want: TagSoldOut,
		},
		{
			name: "check again later suppresses x left",
			tags: []Tag{TagCheckAgainLater, TagXItemsLeft},
			want: TagCheckAgainLater,
		},
		{
			name: "ending soon suppresses x left",
			tags: []Tag{TagEndingSoon, TagXItemsLeft},
			want: TagEndingSoon,
		},
		{
			name: "new plus state",
			tags: []Tag{TagNew, TagNothingToday},
			want: TagNothingToday,
		},
		{
			name:      "two generics is ambiguous",
			tags:      []Tag{TagPopular, TagHiddenGem},
			expectErr: true,
		},
		{
			name:      "two states is ambiguous",
			tags:      []Tag{TagSoldOut, TagNothingToday},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CollapseTags(tt.tags)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFavorite_IsSelling(t *testing.T) {
	tests := []struct {
		name string
		fave Favorite
		want bool
	}{
		{"no tag with stock", Favorite{NumAvailable: 3}, true},
		{"no tag without stock", Favorite{}, false},
		{"ending soon", Favorite{Tag: TagEndingSoon, NumAvailable: 1}, true},
		{"x left", Favorite{Tag: TagXItemsLeft, NumAvailable: 2}, true},
		{"generic tag", Favorite{Tag: TagPopular, NumAvailable: 5}, true},
		{"sold out", Favorite{Tag: TagSoldOut}, false},
		{"nothing today", Favorite{Tag: TagNothingToday}, false},
		{"check again later", Favorite{Tag: TagCheckAgainLater}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fave.IsSelling())
		})
	}
}

func TestFavorite_Validate(t *testing.T) {
	assert.NoError(t, (&Favorite{Tag: TagSoldOut}).Validate())
	assert.NoError(t, (&Favorite{Tag: TagXItemsLeft, NumAvailable: 2}).Validate())
	assert.Error(t, (&Favorite{Tag: TagSoldOut, NumAvailable: 3}).Validate())
	assert.Error(t, (&Favorite{Tag: TagEndingSoon, NumAvailable: 0}).Validate())
}

func TestFavorite_IsInteresting(t *testing.T) {
	dull := &Favorite{ID: 1, Name: "Store", Tag: TagNothingToday}
	assert.False(t, dull.IsInteresting())

	assert.True(t, (&Favorite{Tag: TagSoldOut}).IsInteresting())
	assert.True(t, (&Favorite{Tag: TagNothingToday, NumAvailable: 1}).IsInteresting())
	soldOut := time.Now()
	assert.True(t, (&Favorite{Tag: TagNothingToday, SoldOutAt: &soldOut}).IsInteresting())
}

func TestFavorite_EqualAndDiff(t *testing.T) {
	start := time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC)
	a := &Favorite{
		ID: 7, Name: "Bakery", Tag: TagXItemsLeft, NumAvailable: 2,
		PickupInterval: &Interval{Start: start, End: start.Add(time.Hour)},
	}
	b := &Favorite{
		ID: 7, Name: "Bakery", Tag: TagXItemsLeft, NumAvailable: 2,
		PickupInterval: &Interval{Start: start, End: start.Add(time.Hour)},
	}
	assert.True(t, a.Equal(b))
	assert.Empty(t, b.Diff(a))

	b.Tag = TagSoldOut
	b.NumAvailable = 0
	assert.False(t, a.Equal(b))
	diff := b.Diff(a)
	assert.Len(t, diff, 2)
	assert.Contains(t, diff[0], "tag:")
	assert.Contains(t, diff[1], "num_available: 2 -> 0")

	var nilFave *Favorite
	assert.False(t, a.Equal(nilFave))
	assert.True(t, nilFave.Equal(nil))
}

func TestItem_MaxQuantity(t *testing.T) {
	item := &Item{Favorite: Favorite{NumAvailable: 5}}
	assert.Equal(t, 5, item.MaxQuantity(), "no limit means all available")

	item.PurchaseLimit = 2
	assert.Equal(t, 2, item.MaxQuantity())

	item.PurchaseLimit = 10
	assert.Equal(t, 5, item.MaxQuantity(), "limit above stock is moot")
}

func TestPrice_String(t *testing.T) {
	assert.Equal(t, "5.99 EUR", Price{Code: "EUR", MinorUnits: 599, Decimals: 2}.String())
	assert.Equal(t, "0.05 EUR", Price{Code: "EUR", MinorUnits: 5, Decimals: 2}.String())
	assert.Equal(t, "120 JPY", Price{Code: "JPY", MinorUnits: 120, Decimals: 0}.String())
}

func TestPrice_Arithmetic(t *testing.T) {
	a := Price{Code: "EUR", MinorUnits: 500, Decimals: 2}
	b := Price{Code: "EUR", MinorUnits: 250, Decimals: 2}

	sum, err := a.Add(b)
	assert.NoError(t, err)
	assert.Equal(t, int64(750), sum.MinorUnits)

	diff, err := a.Sub(b)
	assert.NoError(t, err)
	assert.Equal(t, int64(250), diff.MinorUnits)

	_, err = a.Add(Price{Code: "USD", MinorUnits: 100, Decimals: 2})
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestReservation_ExpiresAt(t *testing.T) {
	reservedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &Reservation{ReservedAt: reservedAt}
	assert.Equal(t, reservedAt.Add(4*time.Minute), r.ExpiresAt())
}
