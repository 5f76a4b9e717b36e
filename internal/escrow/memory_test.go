package escrow

import (
	"context"
	"math/big"
	"testing"
)

func TestMemoryDepositRequiresFunds(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(mainAddr)
	d := Deposit{Recipient: otherAddr, Amount: big.NewInt(100), ReleaseAt: 1, Stablecoin: usdcAddr}

	// No allowance.
	if _, err := m.DepositAndSchedule(ctx, mainAddr, d); err == nil {
		t.Fatal("deposit without allowance accepted")
	}

	// Allowance but no balance.
	if _, err := m.Approve(ctx, mainAddr, usdcAddr, escrowAddr, big.NewInt(100)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := m.DepositAndSchedule(ctx, mainAddr, d); err == nil {
		t.Fatal("deposit without balance accepted")
	}

	m.Credit(usdcAddr, mainAddr, big.NewInt(100))
	if _, err := m.DepositAndSchedule(ctx, mainAddr, d); err != nil {
		t.Fatalf("funded deposit: %v", err)
	}

	// Both the allowance and the balance were consumed.
	allowance, _ := m.Allowance(ctx, usdcAddr, mainAddr, escrowAddr)
	balance, _ := m.BalanceOf(ctx, usdcAddr, mainAddr)
	if allowance.Sign() != 0 || balance.Sign() != 0 {
		t.Fatalf("leftovers: allowance=%s balance=%s", allowance, balance)
	}
}

func TestMemoryDepositRejectsNonEmployer(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(mainAddr)
	m.Credit(usdcAddr, otherAddr, big.NewInt(100))
	if _, err := m.Approve(ctx, otherAddr, usdcAddr, escrowAddr, big.NewInt(100)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	d := Deposit{Recipient: mainAddr, Amount: big.NewInt(100), ReleaseAt: 1, Stablecoin: usdcAddr}
	if _, err := m.DepositAndSchedule(ctx, otherAddr, d); err == nil {
		t.Fatal("non-employer deposit accepted")
	}
}

func TestMemoryReceipts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(mainAddr)
	tx, err := m.AddAuthorizedEmployer(ctx, mainAddr, otherAddr)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	rcpt, err := m.WaitConfirmed(ctx, tx)
	if err != nil || !rcpt.OK || rcpt.Hash != tx {
		t.Fatalf("receipt: %+v err=%v", rcpt, err)
	}
	if _, err := m.WaitConfirmed(ctx, "0xunknown"); err == nil {
		t.Fatal("unknown transaction confirmed")
	}
}

func TestStaticSignerDeterministic(t *testing.T) {
	ctx := context.Background()
	var digest [32]byte
	digest[0] = 1

	a, err := StaticSigner{}.Sign(ctx, mainAddr, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	b, _ := StaticSigner{}.Sign(ctx, mainAddr, digest)
	if len(a) != 65 || string(a) != string(b) {
		t.Fatalf("signature not deterministic 65 bytes: len=%d", len(a))
	}
	c, _ := StaticSigner{}.Sign(ctx, otherAddr, digest)
	if string(a) == string(c) {
		t.Fatal("signature does not bind the signer")
	}
}
