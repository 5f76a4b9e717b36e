package escrow

import (
	"context"
	"math/big"
)

// Reader issues point-in-time reads against the escrow ledger. Each value is
// independently cacheable and may be stale relative to any other; callers
// recompute derived state from the latest snapshot of each input rather than
// patching prior results.
type Reader interface {
	Payment(ctx context.Context, id uint64) (Payment, error)
	PaymentsByRecipient(ctx context.Context, recipient Address) ([]uint64, error)
	PaymentCounter(ctx context.Context) (uint64, error)
	WorkVerified(ctx context.Context, id uint64) (bool, error)
	IsClaimable(ctx context.Context, id uint64) (bool, error)
	Employer(ctx context.Context) (Address, error)
	IsAuthorizedEmployer(ctx context.Context, addr Address) (bool, error)
}

// TokenReader covers the ERC-20 reads the deposit flow needs.
type TokenReader interface {
	Allowance(ctx context.Context, token, owner, spender Address) (*big.Int, error)
	BalanceOf(ctx context.Context, token, owner Address) (*big.Int, error)
}

// Writer submits mutating ledger transactions on behalf of `from` and waits
// for their confirmation. Transaction signing is the wallet facility's job;
// this side only sees submit-then-confirm.
type Writer interface {
	DepositAndSchedule(ctx context.Context, from Address, d Deposit) (TxHash, error)
	ClaimPayment(ctx context.Context, from Address, id uint64) (TxHash, error)
	VerifyWork(ctx context.Context, from Address, id uint64, signature []byte) (TxHash, error)
	AddAuthorizedEmployer(ctx context.Context, from, employer Address) (TxHash, error)
	RemoveAuthorizedEmployer(ctx context.Context, from, employer Address) (TxHash, error)
	Approve(ctx context.Context, from, token, spender Address, amount *big.Int) (TxHash, error)
	WaitConfirmed(ctx context.Context, tx TxHash) (Receipt, error)
}

// Signer obtains a signature over a 32-byte digest from the acting party's
// key. The implementation owns the signature scheme's message-prefix
// convention; callers hand it the raw digest and nothing else.
type Signer interface {
	Sign(ctx context.Context, from Address, digest [32]byte) ([]byte, error)
}

// Invalidator drops cached reads that a confirmed mutation could have
// changed, so the next read goes back to the ledger.
type Invalidator interface {
	InvalidatePayment(ctx context.Context, id uint64) error
	InvalidateCounter(ctx context.Context) error
}
