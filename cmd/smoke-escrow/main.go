package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"payso.org/internal/escrow"
	"payso.org/internal/tokens"
)

// Runs the full payroll cycle against the in-memory ledger: schedule a
// work-gated payment, watch its status move, verify work, claim.
func main() {
	employer := escrow.Address("0x00000000000000000000000000000000000000a1")
	worker := escrow.Address("0x00000000000000000000000000000000000000b2")
	usdc := escrow.Address("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	escrowAddr := escrow.Address("0x00000000000000000000000000000000000000e5")

	now := time.Now().Unix()
	clock := now
	mem := escrow.NewMemory(employer)
	mem.SetClock(func() int64 { return clock })
	mem.Credit(usdc, employer, big.NewInt(10_000_000_000))

	cached := escrow.NewCachedReader(mem, escrow.NewMemCache())
	client := escrow.NewClient(cached, mem, mem, escrow.StaticSigner{}, cached, escrowAddr)
	client.SetClock(func() int64 { return clock })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	table := tokens.Default()
	amount, err := table.Parse(usdc, "2500.00")
	if err != nil {
		log.Fatalf("parse amount: %v", err)
	}

	if _, err := client.ScheduleDeposit(ctx, employer, escrow.Deposit{
		Recipient:         worker,
		Amount:            amount,
		ReleaseAt:         now + 3600,
		RequiresWorkEvent: true,
		Stablecoin:        usdc,
	}); err != nil {
		log.Fatalf("schedule: %v", err)
	}

	id, ok, err := client.LatestPaymentID(ctx)
	if err != nil || !ok {
		log.Fatalf("latest payment id: %v", err)
	}

	view, err := client.PaymentView(ctx, id)
	if err != nil {
		log.Fatalf("payment view: %v", err)
	}
	if view.Status != escrow.StatusPending {
		log.Fatalf("expected pending before release, got %s", view.Status)
	}

	// Past the release instant the payment waits on the attestation.
	clock = now + 7200
	if view, err = client.PaymentView(ctx, id); err != nil {
		log.Fatalf("payment view: %v", err)
	}
	if view.Status != escrow.StatusWorkRequired {
		log.Fatalf("expected work_required after release, got %s", view.Status)
	}

	if _, err := client.VerifyWork(ctx, employer, id); err != nil {
		log.Fatalf("verify work: %v", err)
	}
	if view, err = client.PaymentView(ctx, id); err != nil {
		log.Fatalf("payment view: %v", err)
	}
	if view.Status != escrow.StatusClaimable {
		log.Fatalf("expected claimable after verification, got %s", view.Status)
	}

	if _, err := client.Claim(ctx, worker, id); err != nil {
		log.Fatalf("claim: %v", err)
	}
	if view, err = client.PaymentView(ctx, id); err != nil {
		log.Fatalf("payment view: %v", err)
	}
	if view.Status != escrow.StatusClaimed {
		log.Fatalf("expected claimed, got %s", view.Status)
	}

	fmt.Printf("✅ escrow smoke test passed: payment #%d, %s to %s\n",
		id, table.Format(usdc, view.Amount), worker.Short())
}
