package types

import (
	"fmt"
	"strings"
)

// EnergySource is the closed set of generation sources an offer can carry.
// The zero value is not a valid source.
type EnergySource uint8

const (
	EnergySourceSolar EnergySource = iota + 1
	EnergySourceWind
	EnergySourceHydro
	EnergySourceBiomass
	EnergySourceOther
)

// EnergySources lists every valid source in contract order.
func EnergySources() []EnergySource {
	return []EnergySource{
		EnergySourceSolar,
		EnergySourceWind,
		EnergySourceHydro,
		EnergySourceBiomass,
		EnergySourceOther,
	}
}

// ParseEnergySource maps s to a source ignoring case. Anything that is not
// exactly one of the source names fails with ErrUnknownEnergySource.
func ParseEnergySource(s string) (EnergySource, error) {
	for _, src := range EnergySources() {
		if strings.EqualFold(s, src.String()) {
			return src, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEnergySource, s)
}

// String returns the contract variant name.
func (e EnergySource) String() string {
	switch e {
	case EnergySourceSolar:
		return "Solar"
	case EnergySourceWind:
		return "Wind"
	case EnergySourceHydro:
		return "Hydro"
	case EnergySourceBiomass:
		return "Biomass"
	case EnergySourceOther:
		return "Other"
	default:
		return fmt.Sprintf("EnergySource(%d)", uint8(e))
	}
}

// Validate reports whether e is one of the known variants.
func (e EnergySource) Validate() error {
	switch e {
	case EnergySourceSolar, EnergySourceWind, EnergySourceHydro, EnergySourceBiomass, EnergySourceOther:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownEnergySource, uint8(e))
	}
}

func (e EnergySource) MarshalText() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return []byte(e.String()), nil
}

func (e *EnergySource) UnmarshalText(text []byte) error {
	src, err := ParseEnergySource(string(text))
	if err != nil {
		return err
	}
	*e = src
	return nil
}
