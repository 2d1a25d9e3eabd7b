package types

// MarketStatus is the aggregate snapshot reported by the contract. It is
// never derived locally.
type MarketStatus struct {
	ActiveOfferCount    uint64 `json:"active_offers"`
	CompletedTradeCount uint64 `json:"completed_trades"`
	TotalEnergyTraded   uint64 `json:"total_energy_traded"`
	TotalOffersCreated  uint64 `json:"total_offers_created"`
}

// UserProfile is the per-address trading record kept by the contract.
type UserProfile struct {
	Address           string   `json:"address"`
	TotalEnergySold   uint64   `json:"total_energy_sold"`
	TotalEnergyBought uint64   `json:"total_energy_bought"`
	ReputationScore   uint64   `json:"reputation_score"`
	ActiveOffers      []uint64 `json:"active_offers"`
	TradeHistory      []uint64 `json:"trade_history"`
}
