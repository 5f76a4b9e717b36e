package tokens

import (
	"errors"
	"math/big"
	"testing"

	"payso.org/internal/escrow"
)

const (
	usdc    = escrow.Address("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	dai     = escrow.Address("0x6b175474e89094c44da98b954eedeac495271d0f")
	unknown = escrow.Address("0x00000000000000000000000000000000000000ff")
)

func TestSymbol(t *testing.T) {
	tbl := Default()
	if got := tbl.Symbol(usdc); got != "USDC" {
		t.Fatalf("symbol = %s, want USDC", got)
	}
	// Mixed casing still resolves.
	if got := tbl.Symbol(escrow.Address("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")); got != "USDC" {
		t.Fatalf("mixed-case symbol = %s, want USDC", got)
	}
	if got := tbl.Symbol(unknown); got != unknown.Short() {
		t.Fatalf("unlisted symbol = %s, want short address", got)
	}
}

func TestFormat(t *testing.T) {
	tbl := Default()
	cases := []struct {
		addr   escrow.Address
		amount int64
		want   string
	}{
		{usdc, 1_250_500_000, "1250.5 USDC"},
		{usdc, 1, "0.000001 USDC"},
		{usdc, 0, "0 USDC"},
	}
	for _, tc := range cases {
		if got := tbl.Format(tc.addr, big.NewInt(tc.amount)); got != tc.want {
			t.Fatalf("Format(%d) = %q, want %q", tc.amount, got, tc.want)
		}
	}
	if got := tbl.Format(dai, new(big.Int).Mul(big.NewInt(3), big.NewInt(1e18))); got != "3 DAI" {
		t.Fatalf("DAI format = %q", got)
	}
}

func TestParse(t *testing.T) {
	tbl := Default()

	got, err := tbl.Parse(usdc, "1250.50")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Int64() != 1_250_500_000 {
		t.Fatalf("parsed %s, want 1250500000", got)
	}

	bad := []string{"", "abc", "-5", "0", "0.0000001"}
	for _, s := range bad {
		if _, err := tbl.Parse(usdc, s); !errors.Is(err, escrow.ErrInvalidInput) {
			t.Fatalf("Parse(%q): err = %v, want ErrInvalidInput", s, err)
		}
	}

	if _, err := tbl.Parse(unknown, "1"); !errors.Is(err, escrow.ErrInvalidInput) {
		t.Fatalf("unlisted token err = %v, want ErrInvalidInput", err)
	}
}
