package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/energymarket/marketclient/types"
)

func TestParseSortKey(t *testing.T) {
	for _, k := range SortKeys() {
		got, err := ParseSortKey(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseSortKey("PRICE")
	require.NoError(t, err)
	assert.Equal(t, SortByPrice, got)

	_, err = ParseSortKey("rating")
	require.ErrorIs(t, err, ErrUnknownSortKey)
}

func TestSortPanicsOnUnknownKey(t *testing.T) {
	assert.Panics(t, func() { Sort(nil, SortKey("rating"), Ascending) })
}

func TestToggle(t *testing.T) {
	s := DefaultSortState()
	assert.Equal(t, SortState{Key: SortByPrice, Direction: Ascending}, s)

	s = s.Toggle(SortByPrice)
	assert.Equal(t, Descending, s.Direction)
	s = s.Toggle(SortByPrice)
	assert.Equal(t, Ascending, s.Direction)

	s = s.Toggle(SortByPrice).Toggle(SortByExpiry)
	assert.Equal(t, SortState{Key: SortByExpiry, Direction: Ascending}, s)
}

func TestSortByKey(t *testing.T) {
	base := time.Unix(1700000000, 0).UTC()
	offers := []types.Offer{
		{ID: 1, Seller: "GB", EnergyAmount: 30, PricePerUnit: 7, Source: types.EnergySourceWind, Expiry: base.Add(3 * time.Hour)},
		{ID: 2, Seller: "GA", EnergyAmount: 10, PricePerUnit: 9, Source: types.EnergySourceBiomass, Expiry: base.Add(time.Hour)},
		{ID: 3, Seller: "GC", EnergyAmount: 20, PricePerUnit: 5, Source: types.EnergySourceSolar, Expiry: base.Add(2 * time.Hour)},
	}

	testCases := []struct {
		key  SortKey
		want []uint64
	}{
		{SortByID, []uint64{1, 2, 3}},
		{SortBySeller, []uint64{2, 1, 3}},
		{SortByEnergy, []uint64{2, 3, 1}},
		{SortByPrice, []uint64{3, 1, 2}},
		{SortBySource, []uint64{2, 3, 1}},
		{SortByExpiry, []uint64{2, 3, 1}},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(string(tc.key), func(t *testing.T) {
			assert.Equal(t, tc.want, ids(Sort(offers, tc.key, Ascending)))

			want := append([]uint64(nil), tc.want...)
			for i, j := 0, len(want)-1; i < j; i, j = i+1, j-1 {
				want[i], want[j] = want[j], want[i]
			}
			assert.Equal(t, want, ids(Sort(offers, tc.key, Descending)))
		})
	}

	// input untouched
	assert.Equal(t, []uint64{1, 2, 3}, ids(offers))
}

func ids(offers []types.Offer) []uint64 {
	out := make([]uint64, len(offers))
	for i, o := range offers {
		out[i] = o.ID
	}
	return out
}

// Offers with equal keys keep their input order in both directions.
func TestSortIsStable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n").(int)
		offers := make([]types.Offer, n)
		for i := range offers {
			offers[i] = types.Offer{
				ID:           uint64(i + 1),
				PricePerUnit: rapid.Uint64Range(1, 4).Draw(t, "price").(uint64),
			}
		}
		dir := Direction(rapid.IntRange(0, 1).Draw(t, "dir").(int))

		sorted := Sort(offers, SortByPrice, dir)
		require.Len(t, sorted, n)
		for i := 1; i < len(sorted); i++ {
			prev, cur := sorted[i-1], sorted[i]
			if dir == Ascending {
				require.LessOrEqual(t, prev.PricePerUnit, cur.PricePerUnit)
			} else {
				require.GreaterOrEqual(t, prev.PricePerUnit, cur.PricePerUnit)
			}
			if prev.PricePerUnit == cur.PricePerUnit {
				require.Less(t, prev.ID, cur.ID)
			}
		}
	})
}
