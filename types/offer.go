package types

import (
	"errors"
	"fmt"
	"time"
)

// OfferStatus is the lifecycle state of an offer as seen by the client.
type OfferStatus uint8

const (
	OfferStatusActive OfferStatus = iota + 1
	OfferStatusInactive
	OfferStatusExpired
)

func (s OfferStatus) String() string {
	switch s {
	case OfferStatusActive:
		return "active"
	case OfferStatusInactive:
		return "inactive"
	case OfferStatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Offer is a seller's published intent to trade energy at a price until
// Expiry. Offers are produced by decoding contract results and are treated
// as immutable values.
type Offer struct {
	ID           uint64       `json:"id"`
	Seller       string       `json:"seller"`
	EnergyAmount uint64       `json:"energy_amount"` // kWh
	PricePerUnit uint64       `json:"price_per_unit"`
	Source       EnergySource `json:"source"`
	CreatedAt    time.Time    `json:"created_at"`
	Expiry       time.Time    `json:"expiry"`
	Status       OfferStatus  `json:"status"`
}

// TotalPrice is the price of buying the whole offer.
func (o Offer) TotalPrice() uint64 {
	return o.EnergyAmount * o.PricePerUnit
}

// IsExpired reports whether the offer can no longer be traded at now.
func (o Offer) IsExpired(now time.Time) bool {
	return !o.Expiry.IsZero() && now.After(o.Expiry)
}

// StatusAt resolves the effective status at now; an active offer past its
// expiry is reported as expired.
func (o Offer) StatusAt(now time.Time) OfferStatus {
	if o.Status == OfferStatusActive && o.IsExpired(now) {
		return OfferStatusExpired
	}
	return o.Status
}

// ValidateBasic performs stateless validation of a decoded offer.
func (o Offer) ValidateBasic() error {
	if o.ID == 0 {
		return errors.New("offer id must be positive")
	}
	if o.Seller == "" {
		return errors.New("offer seller is empty")
	}
	if o.EnergyAmount == 0 {
		return fmt.Errorf("offer %d: %w: energy amount is zero", o.ID, ErrInvalidQuantity)
	}
	if o.PricePerUnit == 0 {
		return fmt.Errorf("offer %d: %w: price per unit is zero", o.ID, ErrInvalidQuantity)
	}
	return o.Source.Validate()
}

// Trade is a completed purchase of (part of) an offer.
type Trade struct {
	ID           uint64       `json:"id"`
	OfferID      uint64       `json:"offer_id"`
	Seller       string       `json:"seller"`
	Buyer        string       `json:"buyer"`
	EnergyAmount uint64       `json:"energy_amount"`
	TotalPrice   uint64       `json:"total_price"`
	Source       EnergySource `json:"source"`
	Time         time.Time    `json:"time"`
}
