package models

type ConnectRequest struct {
	ProviderID string `json:"provider_id" binding:"required"`
}

type ConnectResponse struct {
	Token   string         `json:"token"`
	Session *WalletSession `json:"session"`
}

type StartRoundRequest struct {
	WagerAmount uint64    `json:"wager_amount"`
	SpeedTier   SpeedTier `json:"speed_tier"`
}

type SelectSlotRequest struct {
	Slot int `json:"slot"`
}

// RoundResult is the ledger-emitted outcome tied to a confirmed wager.
type RoundResult struct {
	TxID             string `json:"tx_id"`
	VerificationHash string `json:"verification_hash"`
	ConfirmedRound   uint64 `json:"confirmed_round"`
}

// PendingTxInfo mirrors the node's pending-transaction status response.
type PendingTxInfo struct {
	ConfirmedRound uint64 `json:"confirmed-round"`
	PoolError      string `json:"pool-error"`
}
