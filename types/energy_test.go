package types

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseEnergySource(t *testing.T) {
	testCases := []struct {
		input string
		want  EnergySource
	}{
		{"solar", EnergySourceSolar},
		{"SOLAR", EnergySourceSolar},
		{"sOlAr", EnergySourceSolar},
		{"Wind", EnergySourceWind},
		{"hydro", EnergySourceHydro},
		{"BIOMASS", EnergySourceBiomass},
		{"other", EnergySourceOther},
	}

	for _, tc := range testCases {
		got, err := ParseEnergySource(tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.want, got, tc.input)
	}

	for _, bad := range []string{"", "sun", "solar ", " wind", "geothermal", "nuclear", "0"} {
		_, err := ParseEnergySource(bad)
		require.ErrorIs(t, err, ErrUnknownEnergySource, bad)
	}
}

func TestParseEnergySourceIgnoresCase(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := rapid.SampledFrom(EnergySources()).Draw(t, "source").(EnergySource)
		name := src.String()

		mask := rapid.SliceOfN(rapid.Bool(), len(name), len(name)).Draw(t, "mask").([]bool)
		var b strings.Builder
		for i, r := range name {
			if mask[i] {
				r = unicode.ToUpper(r)
			} else {
				r = unicode.ToLower(r)
			}
			b.WriteRune(r)
		}

		got, err := ParseEnergySource(b.String())
		if err != nil {
			t.Fatalf("parse %q: %v", b.String(), err)
		}
		if got != src {
			t.Fatalf("parse %q = %v, want %v", b.String(), got, src)
		}
	})
}

func TestParseEnergySourceRejectsEverythingElse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "input").(string)

		known := false
		for _, src := range EnergySources() {
			if strings.EqualFold(s, src.String()) {
				known = true
			}
		}

		_, err := ParseEnergySource(s)
		if known && err != nil {
			t.Fatalf("parse %q: unexpected error %v", s, err)
		}
		if !known && err == nil {
			t.Fatalf("parse %q: expected ErrUnknownEnergySource", s)
		}
	})
}

func TestEnergySourceValidate(t *testing.T) {
	for _, src := range EnergySources() {
		require.NoError(t, src.Validate())
	}
	require.ErrorIs(t, EnergySource(0).Validate(), ErrUnknownEnergySource)
	require.ErrorIs(t, EnergySource(42).Validate(), ErrUnknownEnergySource)

	_, err := EnergySource(0).MarshalText()
	require.Error(t, err)

	var src EnergySource
	require.NoError(t, src.UnmarshalText([]byte("hydro")))
	require.Equal(t, EnergySourceHydro, src)
}
