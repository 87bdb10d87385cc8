package models

import "time"

type RoundPhase string

const (
	PhaseIdle               RoundPhase = "idle"
	PhaseSubmitting         RoundPhase = "submitting"
	PhaseAwaitingSettlement RoundPhase = "awaiting_settlement"
	PhaseRevealing          RoundPhase = "revealing"
	PhaseSettledWon         RoundPhase = "settled_won"
	PhaseSettledLost        RoundPhase = "settled_lost"
)

// Terminal reports whether the round has reached a phase from which no
// further transitions happen. A round that failed or was cancelled is
// returned to idle and counts as terminal.
func (p RoundPhase) Terminal() bool {
	switch p {
	case PhaseIdle, PhaseSettledWon, PhaseSettledLost:
		return true
	}
	return false
}

type SpeedTier string

const (
	SpeedNormal  SpeedTier = "normal"
	SpeedFast    SpeedTier = "fast"
	SpeedExtreme SpeedTier = "extreme"
)

func (s SpeedTier) Valid() bool {
	switch s {
	case SpeedNormal, SpeedFast, SpeedExtreme:
		return true
	}
	return false
}

// DefaultShuffleWindows is the fixed speed-tier to shuffle-window mapping.
// The engine is handed a mapping from config so tests can shrink it.
func DefaultShuffleWindows() map[SpeedTier]time.Duration {
	return map[SpeedTier]time.Duration{
		SpeedNormal:  6000 * time.Millisecond,
		SpeedFast:    4000 * time.Millisecond,
		SpeedExtreme: 2500 * time.Millisecond,
	}
}

// SlotCount is the number of selectable positions in a round.
const SlotCount = 3

// WinMultiplier is the payout factor applied to the wager on a win.
const WinMultiplier = 3

// GameRound is one wagering attempt. It is mutated only by the round engine
// in response to its own async steps and discarded once terminal.
type GameRound struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	WagerAmount uint64    `json:"wager_amount"` // smallest ledger unit
	SpeedTier   SpeedTier `json:"speed_tier"`

	SelectedSlot int        `json:"selected_slot"` // -1 until selected, immutable after
	Phase        RoundPhase `json:"phase"`

	TxID             string `json:"tx_id,omitempty"`
	VerificationHash string `json:"verification_hash,omitempty"`
	OutcomeSlot      int    `json:"outcome_slot"` // -1 until derived
	Won              bool   `json:"won"`
	Payout           uint64 `json:"payout,omitempty"`
	ClaimTxID        string `json:"claim_tx_id,omitempty"`
	ExplorerURL      string `json:"explorer_url,omitempty"`

	// LastError records the kind of the failure that returned the round to
	// idle, or a non-fatal claim failure on a won round.
	LastError string `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	SettledAt time.Time `json:"settled_at,omitempty"`
}

func (r *GameRound) Clone() *GameRound {
	c := *r
	return &c
}
