package market

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/energymarket/marketclient/types"
)

// SortKey names the offer field an offer list is ordered by.
type SortKey string

const (
	SortByID     SortKey = "id"
	SortBySeller SortKey = "seller"
	SortByEnergy SortKey = "energy"
	SortByPrice  SortKey = "price"
	SortBySource SortKey = "source"
	SortByExpiry SortKey = "expiry"
)

// DefaultSortKey orders the offer book by price.
const DefaultSortKey = SortByPrice

// ErrUnknownSortKey is returned by ParseSortKey.
var ErrUnknownSortKey = errors.New("unknown sort key")

func SortKeys() []SortKey {
	return []SortKey{SortByID, SortBySeller, SortByEnergy, SortByPrice, SortBySource, SortByExpiry}
}

// ParseSortKey validates a key chosen by the user. Sort itself does not
// accept unknown keys.
func ParseSortKey(s string) (SortKey, error) {
	for _, k := range SortKeys() {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w %q (want one of %v)", ErrUnknownSortKey, s, SortKeys())
}

// Direction of a sort.
type Direction uint8

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Descending {
		return Ascending
	}
	return Descending
}

// SortState is the current ordering of an offer list.
type SortState struct {
	Key       SortKey
	Direction Direction
}

// DefaultSortState is price ascending.
func DefaultSortState() SortState { return SortState{Key: DefaultSortKey, Direction: Ascending} }

// Toggle selects key: selecting the current key flips the direction, a new
// key starts ascending.
func (s SortState) Toggle(key SortKey) SortState {
	if key == s.Key {
		return SortState{Key: key, Direction: s.Direction.Flip()}
	}
	return SortState{Key: key, Direction: Ascending}
}

// Sort returns a copy of offers ordered by key. The sort is stable in both
// directions: offers with equal keys keep their input order. Sort panics on
// a key that is not one of SortKeys.
func Sort(offers []types.Offer, key SortKey, dir Direction) []types.Offer {
	compare := comparator(key)
	out := append([]types.Offer(nil), offers...)
	sort.SliceStable(out, func(i, j int) bool {
		if dir == Descending {
			return compare(out[j], out[i]) < 0
		}
		return compare(out[i], out[j]) < 0
	})
	return out
}

func comparator(key SortKey) func(a, b types.Offer) int {
	switch key {
	case SortByID:
		return func(a, b types.Offer) int { return compareUint(a.ID, b.ID) }
	case SortBySeller:
		return func(a, b types.Offer) int { return strings.Compare(a.Seller, b.Seller) }
	case SortByEnergy:
		return func(a, b types.Offer) int { return compareUint(a.EnergyAmount, b.EnergyAmount) }
	case SortByPrice:
		return func(a, b types.Offer) int { return compareUint(a.PricePerUnit, b.PricePerUnit) }
	case SortBySource:
		return func(a, b types.Offer) int { return strings.Compare(a.Source.String(), b.Source.String()) }
	case SortByExpiry:
		return func(a, b types.Offer) int {
			switch {
			case a.Expiry.Before(b.Expiry):
				return -1
			case b.Expiry.Before(a.Expiry):
				return 1
			default:
				return 0
			}
		}
	default:
		panic(fmt.Sprintf("market: unsupported sort key %q", key))
	}
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
