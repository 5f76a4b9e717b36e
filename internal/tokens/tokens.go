// Package tokens maps currency identities to display symbols and decimal
// scales. It is formatting and input parsing only; conversion between
// currencies is the ledger's job.
package tokens

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"payso.org/internal/escrow"
)

// Info describes one supported settlement currency.
type Info struct {
	Symbol   string
	Decimals int32
}

// Table maps a token's ledger identity to its display info.
type Table map[escrow.Address]Info

// Default lists the mainnet stablecoins the original deployment supported.
func Default() Table {
	return Table{
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48": {Symbol: "USDC", Decimals: 6},
		"0xdac17f958d2ee523a2206206994597c13d831ec7": {Symbol: "USDT", Decimals: 6},
		"0x6b175474e89094c44da98b954eedeac495271d0f": {Symbol: "DAI", Decimals: 18},
	}
}

func (t Table) lookup(addr escrow.Address) (Info, bool) {
	for a, info := range t {
		if a.Equal(addr) {
			return info, true
		}
	}
	return Info{}, false
}

// Symbol returns the display symbol, falling back to the short address for
// unlisted tokens.
func (t Table) Symbol(addr escrow.Address) string {
	if info, ok := t.lookup(addr); ok {
		return info.Symbol
	}
	return addr.Short()
}

// Format renders a base-unit amount as a human quantity with its symbol.
func (t Table) Format(addr escrow.Address, amount *big.Int) string {
	info, ok := t.lookup(addr)
	if !ok {
		return fmt.Sprintf("%s %s", amount.String(), addr.Short())
	}
	d := decimal.NewFromBigInt(amount, -info.Decimals)
	return fmt.Sprintf("%s %s", d.String(), info.Symbol)
}

// Parse converts a human amount like "1250.50" into base units of the token.
// Sub-unit precision and non-positive amounts are rejected.
func (t Table) Parse(addr escrow.Address, s string) (*big.Int, error) {
	info, ok := t.lookup(addr)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported token %s", escrow.ErrInvalidInput, addr.Short())
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed amount %q", escrow.ErrInvalidInput, s)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", escrow.ErrInvalidInput)
	}
	scaled := d.Shift(info.Decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %q exceeds %s's %d decimals", escrow.ErrInvalidInput, s, info.Symbol, info.Decimals)
	}
	return scaled.BigInt(), nil
}
