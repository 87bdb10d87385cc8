package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// User-input errors, rejected synchronously before anything reaches the ledger.
	KindInvalidWager        ErrorKind = "invalid_wager"
	KindInvalidSlot         ErrorKind = "invalid_slot"
	KindSlotAlreadySelected ErrorKind = "slot_already_selected"
	KindRoundInFlight       ErrorKind = "round_already_in_flight"
	KindRoundNotFound       ErrorKind = "round_not_found"

	// Wallet errors, recoverable locally.
	KindNoWalletSession     ErrorKind = "no_wallet_session"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindUserRejected        ErrorKind = "user_rejected"
	KindSigningRejected     ErrorKind = "signing_rejected"

	// Transport/ledger errors.
	KindSubmissionFailed    ErrorKind = "submission_failed"
	KindConfirmationTimeout ErrorKind = "confirmation_timeout"
	KindResultUnavailable   ErrorKind = "result_unavailable"
	KindMalformedHash       ErrorKind = "malformed_verification_hash"

	// Claim errors are non-fatal relative to the round outcome.
	KindClaimFailed ErrorKind = "claim_failed"
)

// GameError carries kind + human message + optional transaction id so callers
// can render both a user-facing message and an audit trail entry.
type GameError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	TxID    string    `json:"tx_id,omitempty"`
	Err     error     `json:"-"`
}

func (e *GameError) Error() string {
	if e.TxID != "" {
		return fmt.Sprintf("%s: %s (tx %s)", e.Kind, e.Message, e.TxID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GameError) Unwrap() error {
	return e.Err
}

func NewGameError(kind ErrorKind, message string) *GameError {
	return &GameError{Kind: kind, Message: message}
}

func NewGameErrorf(kind ErrorKind, format string, args ...interface{}) *GameError {
	return &GameError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WrapGameError(kind ErrorKind, message string, err error) *GameError {
	return &GameError{Kind: kind, Message: message, Err: err}
}

func (e *GameError) WithTx(txID string) *GameError {
	e.TxID = txID
	return e
}

// IsKind reports whether err is (or wraps) a GameError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Kind == kind
	}
	return false
}

// KindOf extracts the error kind, or empty string for untyped errors.
func KindOf(err error) ErrorKind {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}
