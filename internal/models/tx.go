package models

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// SuggestedParams are refetched from the node before each submission.
// Stale params are one of the documented causes of a rejected submission.
type SuggestedParams struct {
	Fee        uint64 `json:"fee"`
	FirstValid uint64 `json:"first_valid"`
	LastValid  uint64 `json:"last_valid"`
	GenesisID  string `json:"genesis_id"`
}

// AppCallTx is a program-invocation transaction with an attached payment.
// Args are ordered opaque byte strings; the contract dictates their meaning.
type AppCallTx struct {
	Sender     string   `cbor:"snd"`
	AppID      uint64   `cbor:"apid"`
	Args       [][]byte `cbor:"apaa"`
	Receiver   string   `cbor:"rcv,omitempty"`
	Amount     uint64   `cbor:"amt,omitempty"`
	Fee        uint64   `cbor:"fee"`
	FirstValid uint64   `cbor:"fv"`
	LastValid  uint64   `cbor:"lv"`
	GenesisID  string   `cbor:"gen"`
}

type SignedTx struct {
	Tx  AppCallTx `cbor:"txn"`
	Sig []byte    `cbor:"sig"`
}

// canonical CBOR so the same transaction always hashes to the same id
var txEncMode, _ = cbor.CanonicalEncOptions().EncMode()

func (t *AppCallTx) Encode() ([]byte, error) {
	b, err := txEncMode.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode transaction: %w", err)
	}
	return b, nil
}

func (s *SignedTx) Encode() ([]byte, error) {
	b, err := txEncMode.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode signed transaction: %w", err)
	}
	return b, nil
}

func DecodeSignedTx(raw []byte, out *SignedTx) error {
	return cbor.Unmarshal(raw, out)
}

// TxIDFromRaw computes the transaction id as the hex BLAKE3 hash of the
// signed canonical encoding.
func TxIDFromRaw(raw []byte) string {
	h := blake3.New()
	h.Write(raw)
	out := make([]byte, 32)
	h.Sum(out[:0])
	return hex.EncodeToString(out)
}

// ApplicationAddress derives the escrow account address for an application id.
func ApplicationAddress(appID uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], appID)
	h := blake3.New()
	h.Write([]byte("appID"))
	h.Write(buf[:])
	out := make([]byte, 32)
	h.Sum(out[:0])
	return hex.EncodeToString(out)
}

// EncodeUint64 turns an amount or slot into its big-endian wire form for
// ordered app-call arguments.
func EncodeUint64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}
