package escrow

import (
	"context"
	"fmt"
	"sync"

	"payso.org/internal/obs"
)

// Phase is the lifecycle stage of a mutation in flight.
type Phase string

const (
	PhaseSubmitted  Phase = "submitted"
	PhaseConfirming Phase = "confirming"
	PhaseConfirmed  Phase = "confirmed"
	PhaseFailed     Phase = "failed"
)

// Coordinator serializes mutations per logical action key. At most one
// mutation per key may be between submission and confirmation; a duplicate
// is rejected with ErrBusy rather than queued. The in-flight markers are
// process-local, single-session state and need no cross-process locking.
type Coordinator struct {
	waiter interface {
		WaitConfirmed(ctx context.Context, tx TxHash) (Receipt, error)
	}

	mu       sync.Mutex
	inflight map[string]Phase
}

// NewCoordinator builds a coordinator confirming transactions through w.
func NewCoordinator(w Writer) *Coordinator {
	return &Coordinator{waiter: w, inflight: make(map[string]Phase)}
}

// InFlight reports the phase of a pending mutation for key, if any.
func (c *Coordinator) InFlight(key string) (Phase, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.inflight[key]
	return p, ok
}

func (c *Coordinator) acquire(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.inflight[key]; ok {
		return fmt.Errorf("%w: %s", ErrBusy, key)
	}
	c.inflight[key] = PhaseSubmitted
	return nil
}

func (c *Coordinator) setPhase(key string, p Phase) {
	c.mu.Lock()
	c.inflight[key] = p
	c.mu.Unlock()
}

func (c *Coordinator) release(key string) {
	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
}

// Execute runs one mutation through submitted → confirming → confirmed|failed.
//
// A submit failure (signing declined, pre-submission validation) clears the
// marker so the action stays retryable and surfaces as ErrWriteRejected. A
// failure after submission is terminal ErrWriteReverted and is never retried
// here: automatic resubmission of a financial mutation is unsafe. On
// confirmation, invalidate runs before the mutation is reported complete.
func (c *Coordinator) Execute(
	ctx context.Context,
	action, key string,
	submit func(context.Context) (TxHash, error),
	invalidate func(context.Context) error,
) (Receipt, error) {
	if err := c.acquire(key); err != nil {
		return Receipt{}, err
	}
	obs.WritePhase(action, string(PhaseSubmitted))

	tx, err := submit(ctx)
	if err != nil {
		c.release(key)
		obs.WritePhase(action, string(PhaseFailed))
		return Receipt{}, fmt.Errorf("%w: %v", ErrWriteRejected, err)
	}

	c.setPhase(key, PhaseConfirming)
	obs.WritePhase(action, string(PhaseConfirming))

	rcpt, err := c.waiter.WaitConfirmed(ctx, tx)
	if err != nil {
		c.release(key)
		obs.WritePhase(action, string(PhaseFailed))
		return Receipt{}, fmt.Errorf("%w: %v", ErrWriteReverted, err)
	}
	if !rcpt.OK {
		c.release(key)
		obs.WritePhase(action, string(PhaseFailed))
		return rcpt, fmt.Errorf("%w: %s", ErrWriteReverted, rcpt.Reason)
	}

	if invalidate != nil {
		if err := invalidate(ctx); err != nil {
			c.release(key)
			obs.WritePhase(action, string(PhaseFailed))
			return rcpt, fmt.Errorf("invalidate after confirm: %w", err)
		}
	}

	c.release(key)
	obs.WritePhase(action, string(PhaseConfirmed))
	return rcpt, nil
}
