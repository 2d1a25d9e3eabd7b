package contract

import (
	"fmt"
	"time"

	"github.com/energymarket/marketclient/types"
)

// DefaultValidFor is how long an offer stays open when no duration is given.
const DefaultValidFor = 24 * time.Hour

// OfferRequest is a validated create-offer form. Build it with
// NewOfferRequest so invalid input never reaches an intent.
type OfferRequest struct {
	EnergyAmount uint64
	PricePerUnit uint64
	Source       types.EnergySource
	ValidFor     time.Duration
}

// NewOfferRequest parses raw user input. validFor is in seconds; empty means
// DefaultValidFor.
func NewOfferRequest(energyAmount, pricePerUnit, source, validFor string) (OfferRequest, error) {
	amount, err := types.ParseQuantity("energy amount", energyAmount)
	if err != nil {
		return OfferRequest{}, err
	}
	price, err := types.ParseQuantity("price per unit", pricePerUnit)
	if err != nil {
		return OfferRequest{}, err
	}
	src, err := types.ParseEnergySource(source)
	if err != nil {
		return OfferRequest{}, err
	}

	req := OfferRequest{
		EnergyAmount: amount,
		PricePerUnit: price,
		Source:       src,
		ValidFor:     DefaultValidFor,
	}
	if validFor != "" {
		secs, err := types.ParseQuantity("valid for", validFor)
		if err != nil {
			return OfferRequest{}, err
		}
		if secs > uint64(1<<63-1)/uint64(time.Second) {
			return OfferRequest{}, &types.QuantityError{Field: "valid for", Input: validFor}
		}
		req.ValidFor = time.Duration(secs) * time.Second
	}
	return req, nil
}

// ValidateBasic rejects requests that were not built by NewOfferRequest and
// carry a zero quantity.
func (r OfferRequest) ValidateBasic() error {
	if r.EnergyAmount == 0 {
		return &types.QuantityError{Field: "energy amount", Input: "0"}
	}
	if r.PricePerUnit == 0 {
		return &types.QuantityError{Field: "price per unit", Input: "0"}
	}
	if r.ValidFor < time.Second {
		return &types.QuantityError{Field: "valid for", Input: r.ValidFor.String()}
	}
	return nil
}

func (r OfferRequest) String() string {
	return fmt.Sprintf("%d kWh %s at %d/kWh for %v", r.EnergyAmount, r.Source, r.PricePerUnit, r.ValidFor)
}

// TradeRequest is a validated purchase form.
type TradeRequest struct {
	OfferID      uint64
	EnergyAmount uint64
}

// NewTradeRequest parses raw user input.
func NewTradeRequest(offerID, energyAmount string) (TradeRequest, error) {
	id, err := types.ParseQuantity("offer id", offerID)
	if err != nil {
		return TradeRequest{}, err
	}
	amount, err := types.ParseQuantity("energy amount", energyAmount)
	if err != nil {
		return TradeRequest{}, err
	}
	return TradeRequest{OfferID: id, EnergyAmount: amount}, nil
}

// ValidateBasic rejects zero quantities.
func (r TradeRequest) ValidateBasic() error {
	if r.OfferID == 0 {
		return &types.QuantityError{Field: "offer id", Input: "0"}
	}
	if r.EnergyAmount == 0 {
		return &types.QuantityError{Field: "energy amount", Input: "0"}
	}
	return nil
}
