package escrow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// blockWaiter embeds Writer for interface satisfaction; only WaitConfirmed
// is ever called by the coordinator.
type blockWaiter struct {
	Writer

	mu       sync.Mutex
	gate     chan struct{} // closed to let WaitConfirmed return
	receipts map[TxHash]Receipt
	err      error
	waits    int
}

func newBlockWaiter() *blockWaiter {
	return &blockWaiter{gate: make(chan struct{}), receipts: map[TxHash]Receipt{}}
}

func (w *blockWaiter) WaitConfirmed(ctx context.Context, tx TxHash) (Receipt, error) {
	w.mu.Lock()
	w.waits++
	gate, err := w.gate, w.err
	rcpt, ok := w.receipts[tx]
	w.mu.Unlock()

	select {
	case <-gate:
	case <-ctx.Done():
		return Receipt{}, ctx.Err()
	}
	if err != nil {
		return Receipt{}, err
	}
	if !ok {
		rcpt = Receipt{Hash: tx, OK: true}
	}
	return rcpt, nil
}

func okSubmit(tx TxHash) func(context.Context) (TxHash, error) {
	return func(context.Context) (TxHash, error) { return tx, nil }
}

func TestCoordinatorHappyPath(t *testing.T) {
	w := newBlockWaiter()
	close(w.gate)
	c := NewCoordinator(w)

	invalidated := false
	rcpt, err := c.Execute(context.Background(), "claim", "claim/1", okSubmit("0x01"),
		func(context.Context) error { invalidated = true; return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rcpt.OK || rcpt.Hash != "0x01" {
		t.Fatalf("unexpected receipt: %+v", rcpt)
	}
	if !invalidated {
		t.Fatal("invalidate did not run before completion")
	}
	if _, ok := c.InFlight("claim/1"); ok {
		t.Fatal("marker survived a confirmed mutation")
	}
}

func TestCoordinatorDuplicateIsBusy(t *testing.T) {
	w := newBlockWaiter()
	c := NewCoordinator(w)

	done := make(chan error, 1)
	go func() {
		_, err := c.Execute(context.Background(), "claim", "claim/1", okSubmit("0x01"), nil)
		done <- err
	}()

	// Wait for the first mutation to reach the confirming hold.
	for {
		if p, ok := c.InFlight("claim/1"); ok && p == PhaseConfirming {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := c.Execute(context.Background(), "claim", "claim/1", okSubmit("0x02"), nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("duplicate err = %v, want ErrBusy", err)
	}
	w.mu.Lock()
	if w.waits != 1 {
		t.Fatalf("duplicate reached submission: %d waits", w.waits)
	}
	w.mu.Unlock()

	close(w.gate)
	if err := <-done; err != nil {
		t.Fatalf("first mutation failed: %v", err)
	}

	// A different key never contends.
	if _, err := c.Execute(context.Background(), "claim", "claim/2", okSubmit("0x03"), nil); err != nil {
		t.Fatalf("independent key blocked: %v", err)
	}
}

func TestCoordinatorRejectedSubmitIsRetryable(t *testing.T) {
	w := newBlockWaiter()
	close(w.gate)
	c := NewCoordinator(w)

	declined := errors.New("user declined signature")
	_, err := c.Execute(context.Background(), "verify", "verify/1",
		func(context.Context) (TxHash, error) { return "", declined }, nil)
	if !errors.Is(err, ErrWriteRejected) {
		t.Fatalf("err = %v, want ErrWriteRejected", err)
	}
	if _, ok := c.InFlight("verify/1"); ok {
		t.Fatal("marker survived a rejected submission")
	}

	// Same key immediately retryable.
	if _, err := c.Execute(context.Background(), "verify", "verify/1", okSubmit("0x01"), nil); err != nil {
		t.Fatalf("retry after rejection failed: %v", err)
	}
}

func TestCoordinatorRevertIsTerminal(t *testing.T) {
	w := newBlockWaiter()
	w.receipts["0x01"] = Receipt{Hash: "0x01", OK: false, Reason: "execution reverted"}
	close(w.gate)
	c := NewCoordinator(w)

	submits := 0
	rcpt, err := c.Execute(context.Background(), "claim", "claim/1",
		func(context.Context) (TxHash, error) { submits++; return "0x01", nil }, nil)
	if !errors.Is(err, ErrWriteReverted) {
		t.Fatalf("err = %v, want ErrWriteReverted", err)
	}
	if submits != 1 {
		t.Fatalf("reverted write was resubmitted: %d submissions", submits)
	}
	if rcpt.Reason != "execution reverted" {
		t.Fatalf("revert reason lost: %+v", rcpt)
	}
	if _, ok := c.InFlight("claim/1"); ok {
		t.Fatal("marker survived a reverted mutation")
	}
}

func TestCoordinatorConfirmationErrorIsReverted(t *testing.T) {
	w := newBlockWaiter()
	w.err = errors.New("receipt poll timed out")
	close(w.gate)
	c := NewCoordinator(w)

	_, err := c.Execute(context.Background(), "schedule", "schedule/a", okSubmit("0x01"), nil)
	if !errors.Is(err, ErrWriteReverted) {
		t.Fatalf("err = %v, want ErrWriteReverted", err)
	}
}
