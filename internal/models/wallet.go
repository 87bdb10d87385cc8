package models

// WalletSession is a connected signing identity. At most one is active per
// service instance; connecting a new provider tears down the old session.
type WalletSession struct {
	ProviderID string `json:"provider_id"`
	Address    string `json:"address"`

	// Balance is advisory: last known, refreshed by polling and adjusted
	// optimistically on wager/claim. BalanceKnown is false when the last
	// refresh failed and the value is stale.
	Balance      uint64 `json:"balance"`
	BalanceKnown bool   `json:"balance_known"`

	Connected bool `json:"connected"`
}

func (s *WalletSession) Clone() *WalletSession {
	c := *s
	return &c
}

// ProviderInfo describes one registered wallet adapter for the discovery
// endpoint.
type ProviderInfo struct {
	ID        string `json:"id"`
	Available bool   `json:"available"`
}

type BalanceResponse struct {
	Balance      uint64 `json:"balance"`
	BalanceKnown bool   `json:"balance_known"`
	Address      string `json:"address"`
}
