package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// Memory implements Reader, TokenReader and Writer with the escrow
// contract's semantics, in process. It backs the smoke tool and the tests;
// transactions confirm immediately.
type Memory struct {
	mu         sync.RWMutex
	main       Address
	authorized map[Address]bool
	payments   []Payment
	verified   map[uint64]bool
	balances   map[string]*big.Int // token|owner
	allowances map[string]*big.Int // token|owner
	receipts   map[TxHash]Receipt
	seq        uint64
	now        func() int64
}

var (
	_ Reader      = (*Memory)(nil)
	_ TokenReader = (*Memory)(nil)
	_ Writer      = (*Memory)(nil)
)

func NewMemory(mainEmployer Address) *Memory {
	return &Memory{
		main:       mainEmployer,
		authorized: make(map[Address]bool),
		verified:   make(map[uint64]bool),
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]*big.Int),
		receipts:   make(map[TxHash]Receipt),
		now:        func() int64 { return time.Now().Unix() },
	}
}

// SetClock overrides wall-clock time; test hook.
func (m *Memory) SetClock(now func() int64) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Credit funds an account's token balance so deposits can be scheduled.
func (m *Memory) Credit(token, owner Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := holdingKey(token, owner)
	cur := m.balances[key]
	if cur == nil {
		cur = new(big.Int)
	}
	m.balances[key] = new(big.Int).Add(cur, amount)
}

func holdingKey(token, owner Address) string {
	return string(token) + "|" + string(owner)
}

// --- Reads ---

func (m *Memory) Payment(ctx context.Context, id uint64) (Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id >= uint64(len(m.payments)) {
		return Payment{}, fmt.Errorf("%w: payment %d", ErrNotFound, id)
	}
	p := m.payments[id]
	p.Amount = new(big.Int).Set(p.Amount)
	return p, nil
}

func (m *Memory) PaymentsByRecipient(ctx context.Context, recipient Address) ([]uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []uint64
	for _, p := range m.payments {
		if p.Recipient.Equal(recipient) {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (m *Memory) PaymentCounter(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.payments)), nil
}

func (m *Memory) WorkVerified(ctx context.Context, id uint64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.verified[id], nil
}

func (m *Memory) IsClaimable(ctx context.Context, id uint64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id >= uint64(len(m.payments)) {
		return false, fmt.Errorf("%w: payment %d", ErrNotFound, id)
	}
	p := m.payments[id]
	return p.StatusAt(m.verified[id], m.now()) == StatusClaimable, nil
}

func (m *Memory) Employer(ctx context.Context) (Address, error) {
	return m.main, nil
}

func (m *Memory) IsAuthorizedEmployer(ctx context.Context, addr Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authorized[addr], nil
}

func (m *Memory) Allowance(ctx context.Context, token, owner, spender Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a := m.allowances[holdingKey(token, owner)]; a != nil {
		return new(big.Int).Set(a), nil
	}
	return new(big.Int), nil
}

func (m *Memory) BalanceOf(ctx context.Context, token, owner Address) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b := m.balances[holdingKey(token, owner)]; b != nil {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

// --- Writes ---

func (m *Memory) isEmployerLocked(addr Address) bool {
	return addr.Equal(m.main) || m.authorized[addr]
}

// mkTx records an immediately confirmed transaction.
func (m *Memory) mkTx() TxHash {
	m.seq++
	tx := TxHash(fmt.Sprintf("0xmem%08d", m.seq))
	m.receipts[tx] = Receipt{Hash: tx, BlockNumber: m.seq, OK: true}
	return tx
}

func (m *Memory) DepositAndSchedule(ctx context.Context, from Address, d Deposit) (TxHash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isEmployerLocked(from) {
		return "", errors.New("memory ledger: caller is not an employer")
	}
	if d.Amount == nil || d.Amount.Sign() <= 0 {
		return "", errors.New("memory ledger: amount must be positive")
	}
	key := holdingKey(d.Stablecoin, from)
	allowance := m.allowances[key]
	if allowance == nil || allowance.Cmp(d.Amount) < 0 {
		return "", errors.New("memory ledger: insufficient allowance")
	}
	balance := m.balances[key]
	if balance == nil || balance.Cmp(d.Amount) < 0 {
		return "", errors.New("memory ledger: insufficient balance")
	}
	m.allowances[key] = new(big.Int).Sub(allowance, d.Amount)
	m.balances[key] = new(big.Int).Sub(balance, d.Amount)

	m.payments = append(m.payments, Payment{
		ID:                uint64(len(m.payments)),
		Recipient:         d.Recipient,
		Amount:            new(big.Int).Set(d.Amount),
		ReleaseAt:         d.ReleaseAt,
		RequiresWorkEvent: d.RequiresWorkEvent,
		Stablecoin:        d.Stablecoin,
		PreferredPayout:   d.PreferredPayout,
	})
	return m.mkTx(), nil
}

func (m *Memory) ClaimPayment(ctx context.Context, from Address, id uint64) (TxHash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id >= uint64(len(m.payments)) {
		return "", fmt.Errorf("memory ledger: no payment %d", id)
	}
	p := &m.payments[id]
	if !p.Recipient.Equal(from) {
		return "", errors.New("memory ledger: caller is not the recipient")
	}
	if p.StatusAt(m.verified[id], m.now()) != StatusClaimable {
		return "", errors.New("memory ledger: payment not claimable")
	}
	p.Claimed = true
	return m.mkTx(), nil
}

func (m *Memory) VerifyWork(ctx context.Context, from Address, id uint64, signature []byte) (TxHash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id >= uint64(len(m.payments)) {
		return "", fmt.Errorf("memory ledger: no payment %d", id)
	}
	if !m.isEmployerLocked(from) {
		return "", errors.New("memory ledger: caller is not an employer")
	}
	p := m.payments[id]
	if !p.RequiresWorkEvent {
		return "", errors.New("memory ledger: payment does not require a work event")
	}
	if m.verified[id] {
		return "", errors.New("memory ledger: work already verified")
	}
	if len(signature) == 0 {
		return "", errors.New("memory ledger: empty signature")
	}
	m.verified[id] = true
	return m.mkTx(), nil
}

func (m *Memory) AddAuthorizedEmployer(ctx context.Context, from, employer Address) (TxHash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !from.Equal(m.main) {
		return "", errors.New("memory ledger: only the main employer may authorize")
	}
	m.authorized[employer] = true
	return m.mkTx(), nil
}

func (m *Memory) RemoveAuthorizedEmployer(ctx context.Context, from, employer Address) (TxHash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !from.Equal(m.main) {
		return "", errors.New("memory ledger: only the main employer may revoke")
	}
	delete(m.authorized, employer)
	return m.mkTx(), nil
}

func (m *Memory) Approve(ctx context.Context, from, token, spender Address, amount *big.Int) (TxHash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[holdingKey(token, from)] = new(big.Int).Set(amount)
	return m.mkTx(), nil
}

func (m *Memory) WaitConfirmed(ctx context.Context, tx TxHash) (Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rcpt, ok := m.receipts[tx]
	if !ok {
		return Receipt{}, fmt.Errorf("%w: transaction %s", ErrNotFound, tx)
	}
	return rcpt, nil
}

// StaticSigner is a deterministic test signer. Real deployments sign via
// the wallet gateway, which applies the signed-message prefix itself.
type StaticSigner struct{}

func (StaticSigner) Sign(ctx context.Context, from Address, digest [32]byte) ([]byte, error) {
	fb, err := from.Bytes()
	if err != nil {
		return nil, err
	}
	sig := make([]byte, 65)
	copy(sig, digest[:])
	copy(sig[32:], fb[:])
	sig[64] = 27
	return sig, nil
}
