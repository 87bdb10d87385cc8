package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

func GenerateRoundID() string {
	return fmt.Sprintf("round_%s_%d",
		time.Now().Format("20060102"),
		uuid.New().ID())
}

// BaseUnitsPerToken is the UI-facing conversion factor; amounts on the wire
// are always in base units.
const BaseUnitsPerToken = 1_000_000

func FormatAmount(baseUnits uint64) string {
	whole := baseUnits / BaseUnitsPerToken
	frac := baseUnits % BaseUnitsPerToken
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	return fmt.Sprintf("%d.%06d", whole, frac)
}

func (r *StartRoundRequest) Validate() error {
	if r.WagerAmount == 0 {
		return NewGameError(KindInvalidWager, "wager amount must be positive")
	}
	if !r.SpeedTier.Valid() {
		return NewGameErrorf(KindInvalidWager, "unknown speed tier: %s", r.SpeedTier)
	}
	return nil
}

func (r *SelectSlotRequest) Validate() error {
	if r.Slot < 0 || r.Slot >= SlotCount {
		return NewGameErrorf(KindInvalidSlot, "slot must be between 0 and %d", SlotCount-1)
	}
	return nil
}
