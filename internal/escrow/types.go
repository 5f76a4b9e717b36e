package escrow

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Address is a canonicalized (lower-case hex) account identity.
type Address string

// ZeroAddress is the ledger's null identity.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

// ParseAddress validates and canonicalizes a 20-byte hex identity.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return "", fmt.Errorf("%w: malformed address %q", ErrInvalidInput, s)
	}
	if _, err := hex.DecodeString(s[2:]); err != nil {
		return "", fmt.Errorf("%w: malformed address %q", ErrInvalidInput, s)
	}
	return Address(strings.ToLower(s)), nil
}

// Equal compares identities ignoring hex casing.
func (a Address) Equal(b Address) bool {
	return strings.EqualFold(string(a), string(b))
}

func (a Address) IsZero() bool {
	return a == "" || a.Equal(ZeroAddress)
}

// Bytes returns the raw 20-byte form used in packed encodings.
func (a Address) Bytes() ([20]byte, error) {
	var out [20]byte
	if len(a) != 42 || !strings.HasPrefix(string(a), "0x") {
		return out, fmt.Errorf("%w: malformed address %q", ErrInvalidInput, a)
	}
	raw, err := hex.DecodeString(string(a)[2:])
	if err != nil {
		return out, fmt.Errorf("%w: malformed address %q", ErrInvalidInput, a)
	}
	copy(out[:], raw)
	return out, nil
}

// Short renders an abbreviated form for logs and views.
func (a Address) Short() string {
	if len(a) < 10 {
		return string(a)
	}
	return string(a[:6]) + "…" + string(a[len(a)-4:])
}

// Payment is a ledger-owned record; read-only on this side.
// Amount is in base units of Stablecoin, ReleaseAt in Unix seconds.
type Payment struct {
	ID                uint64   `json:"id"`
	Recipient         Address  `json:"recipient"`
	Amount            *big.Int `json:"amount"`
	ReleaseAt         int64    `json:"release_at"`
	Claimed           bool     `json:"claimed"`
	RequiresWorkEvent bool     `json:"requires_work_event"`
	Stablecoin        Address  `json:"stablecoin"`
	PreferredPayout   Address  `json:"preferred_payout"`
}

// Deposit is the input for scheduling a new payment.
type Deposit struct {
	Recipient         Address
	Amount            *big.Int
	ReleaseAt         int64
	RequiresWorkEvent bool
	Stablecoin        Address
	PreferredPayout   Address
}

// TxHash identifies a submitted ledger transaction.
type TxHash string

// Receipt is the confirmation result of a submitted transaction.
type Receipt struct {
	Hash        TxHash `json:"hash"`
	BlockNumber uint64 `json:"block_number"`
	OK          bool   `json:"ok"`
	Reason      string `json:"reason,omitempty"` // opaque revert text, never branched on
}

// Loadable holds a point-in-time ledger read that may still be in flight.
// Known false means "loading", which is distinct from a zero value and
// must never be coerced into one.
type Loadable[T any] struct {
	Value T
	Known bool
}

// Known wraps a completed read.
func Known[T any](v T) Loadable[T] { return Loadable[T]{Value: v, Known: true} }

var (
	ErrNotConnected  = errors.New("escrow: wallet not connected")
	ErrAccessDenied  = errors.New("escrow: access denied")
	ErrInvalidInput  = errors.New("escrow: invalid input")
	ErrNotFound      = errors.New("escrow: not found")
	ErrReadFailed    = errors.New("escrow: ledger read failed")
	ErrWriteRejected = errors.New("escrow: write rejected before submission")
	ErrWriteReverted = errors.New("escrow: write reverted")
	ErrBusy          = errors.New("escrow: action already in flight")
)
