package services

import (
	"strconv"

	"shellgame-backend/internal/models"
)

// outcomePrefixLen is the number of hex characters (4 bytes) of the
// verification hash that feed the outcome.
const outcomePrefixLen = 8

// DeriveOutcomeSlot maps a ledger-supplied verification hash to an outcome
// slot in [0, SlotCount). Pure and deterministic: anyone can recompute the
// outcome from the published hash. A hash too short to carry 4 bytes, or a
// prefix that is not valid hex, fails closed rather than truncating.
func DeriveOutcomeSlot(verificationHash string) (int, error) {
	if len(verificationHash) < outcomePrefixLen {
		return 0, models.NewGameErrorf(models.KindMalformedHash,
			"verification hash too short: %d chars, need %d", len(verificationHash), outcomePrefixLen)
	}

	v, err := strconv.ParseUint(verificationHash[:outcomePrefixLen], 16, 32)
	if err != nil {
		return 0, models.WrapGameError(models.KindMalformedHash,
			"verification hash prefix is not hex", err)
	}

	return int(v % models.SlotCount), nil
}
