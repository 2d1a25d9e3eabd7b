package contract

import (
	"fmt"
	"time"

	"github.com/energymarket/marketclient/types"
)

// EncodeEnergySource maps user input to the contract's EnergyType enum. It
// never defaults: unknown input fails with types.ErrUnknownEnergySource.
func EncodeEnergySource(input string) (types.Value, error) {
	src, err := types.ParseEnergySource(input)
	if err != nil {
		return types.Value{}, err
	}
	return EnergySourceValue(src)
}

// EnergySourceValue encodes an already parsed source.
func EnergySourceValue(src types.EnergySource) (types.Value, error) {
	switch src {
	case types.EnergySourceSolar, types.EnergySourceWind, types.EnergySourceHydro,
		types.EnergySourceBiomass, types.EnergySourceOther:
		return types.EnumValue(src.String()), nil
	default:
		return types.Value{}, src.Validate()
	}
}

// DecodeEnergySource is the inverse of EnergySourceValue.
func DecodeEnergySource(v types.Value) (types.EnergySource, error) {
	variant, ok := v.Enum()
	if !ok {
		return 0, types.NewDecodeError("EnergyType", v, nil)
	}
	switch variant {
	case "Solar":
		return types.EnergySourceSolar, nil
	case "Wind":
		return types.EnergySourceWind, nil
	case "Hydro":
		return types.EnergySourceHydro, nil
	case "Biomass":
		return types.EnergySourceBiomass, nil
	case "Other":
		return types.EnergySourceOther, nil
	default:
		return 0, types.NewDecodeError("EnergyType", v, fmt.Errorf("unknown variant %q", variant))
	}
}

// DecodeMarketStatus decodes the result of get_market_status.
func DecodeMarketStatus(v types.Value) (types.MarketStatus, error) {
	d := newStructDecoder("MarketStatus", v)
	status := types.MarketStatus{
		ActiveOfferCount:    d.u64("active_offers"),
		CompletedTradeCount: d.u64("completed_trades"),
		TotalEnergyTraded:   d.u64("total_energy_traded"),
		TotalOffersCreated:  d.u64("total_offers_created"),
	}
	return status, d.err
}

// DecodeOffer decodes an EnergyOffer.
func DecodeOffer(v types.Value) (types.Offer, error) {
	d := newStructDecoder("EnergyOffer", v)
	offer := types.Offer{
		ID:           d.u64("offer_id"),
		Seller:       d.address("seller"),
		EnergyAmount: d.u64("energy_amount"),
		PricePerUnit: d.u64("price_per_unit"),
		Source:       d.energySource("energy_type"),
		CreatedAt:    d.timestamp("creation_time"),
		Expiry:       d.timestamp("expiration_time"),
		Status:       types.OfferStatusInactive,
	}
	if d.flag("is_active") {
		offer.Status = types.OfferStatusActive
	}
	if d.err != nil {
		return types.Offer{}, d.err
	}
	if err := offer.ValidateBasic(); err != nil {
		return types.Offer{}, types.NewDecodeError("EnergyOffer", v, err)
	}
	return offer, nil
}

// DecodeTrade decodes an EnergyTrade.
func DecodeTrade(v types.Value) (types.Trade, error) {
	d := newStructDecoder("EnergyTrade", v)
	trade := types.Trade{
		ID:           d.u64("trade_id"),
		OfferID:      d.u64("offer_id"),
		Seller:       d.address("seller"),
		Buyer:        d.address("buyer"),
		EnergyAmount: d.u64("energy_amount"),
		TotalPrice:   d.u64("total_price"),
		Source:       d.energySource("energy_type"),
		Time:         d.timestamp("trade_time"),
	}
	if d.err != nil {
		return types.Trade{}, d.err
	}
	return trade, nil
}

// DecodeUserProfile decodes a UserProfile.
func DecodeUserProfile(v types.Value) (types.UserProfile, error) {
	d := newStructDecoder("UserProfile", v)
	profile := types.UserProfile{
		Address:           d.address("user_address"),
		TotalEnergySold:   d.u64("total_energy_sold"),
		TotalEnergyBought: d.u64("total_energy_bought"),
		ReputationScore:   d.u64("reputation_score"),
		ActiveOffers:      d.ids("active_offers"),
		TradeHistory:      d.ids("trade_history"),
	}
	if d.err != nil {
		return types.UserProfile{}, d.err
	}
	return profile, nil
}

// DecodeIDs decodes a Vec<u64>, preserving order.
func DecodeIDs(v types.Value) ([]uint64, error) {
	vec, ok := v.Vec()
	if !ok {
		return nil, types.NewDecodeError("Vec<u64>", v, nil)
	}
	ids := make([]uint64, 0, len(vec))
	for i, e := range vec {
		id, ok := e.U64()
		if !ok {
			return nil, types.NewDecodeError("Vec<u64>", v, fmt.Errorf("element %d is %s", i, e.Describe()))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DecodeID decodes the u64 returned by create_offer and execute_trade.
func DecodeID(v types.Value) (uint64, error) {
	id, ok := v.U64()
	if !ok {
		return 0, types.NewDecodeError("u64", v, nil)
	}
	return id, nil
}

// DecodeAck decodes the void result of operations that return nothing.
func DecodeAck(v types.Value) error {
	if !v.IsVoid() {
		return types.NewDecodeError("void", v, nil)
	}
	return nil
}

//-------------------------------------------------------------------------------

// structDecoder reads named fields of a contract struct. The first failure
// sticks; later reads return zero values.
type structDecoder struct {
	want string
	v    types.Value
	err  error
}

func newStructDecoder(want string, v types.Value) *structDecoder {
	d := &structDecoder{want: want, v: v}
	if _, ok := v.Map(); !ok {
		d.err = types.NewDecodeError(want, v, nil)
	}
	return d
}

func (d *structDecoder) field(name string) (types.Value, bool) {
	if d.err != nil {
		return types.Value{}, false
	}
	f, ok := d.v.Lookup(name)
	if !ok {
		d.err = types.NewDecodeError(d.want, d.v, fmt.Errorf("missing field %s", name))
	}
	return f, ok
}

func (d *structDecoder) fail(name string, f types.Value) {
	d.err = types.NewDecodeError(d.want, d.v, fmt.Errorf("field %s is %s", name, f.Describe()))
}

func (d *structDecoder) u64(name string) uint64 {
	f, ok := d.field(name)
	if !ok {
		return 0
	}
	n, ok := f.U64()
	if !ok {
		d.fail(name, f)
	}
	return n
}

func (d *structDecoder) flag(name string) bool {
	f, ok := d.field(name)
	if !ok {
		return false
	}
	b, ok := f.Bool()
	if !ok {
		d.fail(name, f)
	}
	return b
}

func (d *structDecoder) address(name string) string {
	f, ok := d.field(name)
	if !ok {
		return ""
	}
	s, ok := f.Address()
	if !ok {
		d.fail(name, f)
	}
	return s
}

func (d *structDecoder) timestamp(name string) time.Time {
	n := d.u64(name)
	if d.err != nil {
		return time.Time{}
	}
	return time.Unix(int64(n), 0).UTC()
}

func (d *structDecoder) energySource(name string) types.EnergySource {
	f, ok := d.field(name)
	if !ok {
		return 0
	}
	src, err := DecodeEnergySource(f)
	if err != nil {
		d.fail(name, f)
	}
	return src
}

func (d *structDecoder) ids(name string) []uint64 {
	f, ok := d.field(name)
	if !ok {
		return nil
	}
	ids, err := DecodeIDs(f)
	if err != nil {
		d.fail(name, f)
	}
	return ids
}
