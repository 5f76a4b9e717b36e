package escrow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Cache is point-in-time storage for ledger reads. Implementations are a
// plain key/value store; what goes in each key is this package's business.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

func paymentKey(id uint64) string  { return fmt.Sprintf("payment/%d", id) }
func verifiedKey(id uint64) string { return fmt.Sprintf("verified/%d", id) }
func counterKey() string           { return "counter" }
func mainEmployerKey() string      { return "employer" }

// CachedReader is a read-through decorator over a Reader. Entries are
// generation-stamped: invalidating a key bumps its generation, and a read
// that was already in flight when the invalidation happened is discarded on
// arrival instead of being written over the fresher state.
type CachedReader struct {
	src   Reader
	cache Cache

	mu  sync.Mutex
	gen map[string]uint64
}

var (
	_ Reader      = (*CachedReader)(nil)
	_ Invalidator = (*CachedReader)(nil)
)

func NewCachedReader(src Reader, cache Cache) *CachedReader {
	return &CachedReader{src: src, cache: cache, gen: make(map[string]uint64)}
}

func (r *CachedReader) generation(key string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen[key]
}

func (r *CachedReader) bump(key string) {
	r.mu.Lock()
	r.gen[key]++
	r.mu.Unlock()
}

// lookup unmarshals a cached value into out, reporting whether it was found.
func (r *CachedReader) lookup(ctx context.Context, key string, out any) bool {
	raw, ok, err := r.cache.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// store writes a fresh read unless the key was invalidated while the read
// was in flight.
func (r *CachedReader) store(ctx context.Context, key string, gen uint64, v any) {
	if r.generation(key) != gen {
		return // stale response, discard
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = r.cache.Put(ctx, key, raw)
}

func (r *CachedReader) Payment(ctx context.Context, id uint64) (Payment, error) {
	key := paymentKey(id)
	var cached Payment
	if r.lookup(ctx, key, &cached) {
		return cached, nil
	}
	gen := r.generation(key)
	p, err := r.src.Payment(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	r.store(ctx, key, gen, p)
	return p, nil
}

func (r *CachedReader) WorkVerified(ctx context.Context, id uint64) (bool, error) {
	key := verifiedKey(id)
	var cached bool
	if r.lookup(ctx, key, &cached) {
		return cached, nil
	}
	gen := r.generation(key)
	v, err := r.src.WorkVerified(ctx, id)
	if err != nil {
		return false, err
	}
	r.store(ctx, key, gen, v)
	return v, nil
}

func (r *CachedReader) PaymentCounter(ctx context.Context) (uint64, error) {
	key := counterKey()
	var cached uint64
	if r.lookup(ctx, key, &cached) {
		return cached, nil
	}
	gen := r.generation(key)
	n, err := r.src.PaymentCounter(ctx)
	if err != nil {
		return 0, err
	}
	r.store(ctx, key, gen, n)
	return n, nil
}

func (r *CachedReader) Employer(ctx context.Context) (Address, error) {
	// The main employer is immutable after ledger creation, so this entry
	// is never invalidated.
	key := mainEmployerKey()
	var cached Address
	if r.lookup(ctx, key, &cached) {
		return cached, nil
	}
	gen := r.generation(key)
	a, err := r.src.Employer(ctx)
	if err != nil {
		return "", err
	}
	r.store(ctx, key, gen, a)
	return a, nil
}

// PaymentsByRecipient, IsClaimable and IsAuthorizedEmployer are always
// fetched live: the list changes shape on every schedule, claimability flips
// with wall-clock time, and the main employer can revoke an authorization
// from another session at any moment, so no invalidation this client could
// issue keeps those entries honest.

func (r *CachedReader) PaymentsByRecipient(ctx context.Context, recipient Address) ([]uint64, error) {
	return r.src.PaymentsByRecipient(ctx, recipient)
}

func (r *CachedReader) IsClaimable(ctx context.Context, id uint64) (bool, error) {
	return r.src.IsClaimable(ctx, id)
}

func (r *CachedReader) IsAuthorizedEmployer(ctx context.Context, addr Address) (bool, error) {
	return r.src.IsAuthorizedEmployer(ctx, addr)
}

func (r *CachedReader) InvalidatePayment(ctx context.Context, id uint64) error {
	for _, key := range []string{paymentKey(id), verifiedKey(id)} {
		r.bump(key)
		if err := r.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (r *CachedReader) InvalidateCounter(ctx context.Context) error {
	r.bump(counterKey())
	return r.cache.Delete(ctx, counterKey())
}
