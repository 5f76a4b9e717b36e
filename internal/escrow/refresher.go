package escrow

import (
	"context"
	"time"

	"payso.org/internal/obs"
)

// Refresher re-polls ledger state on an interval so cached reads stay close
// to the chain without any caller forcing a reload. A confirmed write still
// invalidates its own reads immediately; this loop only bounds staleness
// between writes.
type Refresher struct {
	reader   *CachedReader
	interval time.Duration
}

func NewRefresher(reader *CachedReader, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Refresher{reader: reader, interval: interval}
}

// Run polls until the context ends. Failures are logged and the next tick
// tries again; the node client's rate limiter paces the underlying calls.
func (f *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.refresh(ctx); err != nil && ctx.Err() == nil {
				obs.Log(map[string]any{"event": "refresh_failed", "error": err.Error()})
			}
		}
	}
}

func (f *Refresher) refresh(ctx context.Context) error {
	if err := f.reader.InvalidateCounter(ctx); err != nil {
		return err
	}
	n, err := f.reader.PaymentCounter(ctx)
	if err != nil {
		return err
	}
	for id := uint64(0); id < n; id++ {
		if err := f.reader.InvalidatePayment(ctx, id); err != nil {
			return err
		}
		if _, err := f.reader.Payment(ctx, id); err != nil {
			return err
		}
		if _, err := f.reader.WorkVerified(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
