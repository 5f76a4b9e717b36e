package escrow

import (
	"context"
	"fmt"
	"time"

	"payso.org/internal/ids"
	"payso.org/internal/obs"
)

// Client composes the ledger boundary into the payroll operations the API
// exposes. It is stateless between calls apart from the coordinator's
// in-flight markers; every decision is recomputed from fresh reads.
type Client struct {
	reader Reader
	tokens TokenReader
	writer Writer
	signer Signer
	coord  *Coordinator
	inv    Invalidator
	escrow Address // contract identity; spender for token approvals
	now    func() int64
}

func NewClient(reader Reader, tokens TokenReader, writer Writer, signer Signer, inv Invalidator, escrowAddr Address) *Client {
	return &Client{
		reader: reader,
		tokens: tokens,
		writer: writer,
		signer: signer,
		coord:  NewCoordinator(writer),
		inv:    inv,
		escrow: escrowAddr,
		now:    func() int64 { return time.Now().Unix() },
	}
}

// SetClock overrides wall-clock time; test hook.
func (c *Client) SetClock(now func() int64) { c.now = now }

// Role resolves the connected identity's role from fresh ledger reads.
// The authorization flag is only fetched when the main-employer comparison
// alone cannot decide.
func (c *Client) Role(ctx context.Context, connected Address) (Role, error) {
	if connected == "" {
		return RoleUnknown, ErrNotConnected
	}
	main, err := c.reader.Employer(ctx)
	if err != nil {
		return RoleUnknown, err
	}
	role, err := ResolveRole(connected, Known(main), Loadable[bool]{})
	if err != nil || role != RoleUnknown {
		return role, err
	}
	authorized, err := c.reader.IsAuthorizedEmployer(ctx, connected)
	if err != nil {
		return RoleUnknown, err
	}
	return ResolveRole(connected, Known(main), Known(authorized))
}

// PaymentView is a payment joined with its verification flag and the status
// derived from both at the current instant.
type PaymentView struct {
	Payment
	WorkVerified bool          `json:"work_verified"`
	Status       PaymentStatus `json:"status"`
}

func (c *Client) PaymentView(ctx context.Context, id uint64) (PaymentView, error) {
	p, err := c.reader.Payment(ctx, id)
	if err != nil {
		return PaymentView{}, err
	}
	verified, err := c.reader.WorkVerified(ctx, id)
	if err != nil {
		return PaymentView{}, err
	}
	return PaymentView{
		Payment:      p,
		WorkVerified: verified,
		Status:       p.StatusAt(verified, c.now()),
	}, nil
}

// RecipientView lists the payments addressed to recipient.
func (c *Client) RecipientView(ctx context.Context, recipient Address) ([]PaymentView, error) {
	if recipient == "" {
		return nil, ErrNotConnected
	}
	idsList, err := c.reader.PaymentsByRecipient(ctx, recipient)
	if err != nil {
		return nil, err
	}
	views := make([]PaymentView, 0, len(idsList))
	for _, id := range idsList {
		v, err := c.PaymentView(ctx, id)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// EmployerView lists every payment on the ledger, id 0 through counter-1.
func (c *Client) EmployerView(ctx context.Context) ([]PaymentView, error) {
	n, err := c.reader.PaymentCounter(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]PaymentView, 0, n)
	for id := uint64(0); id < n; id++ {
		v, err := c.PaymentView(ctx, id)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// LatestPaymentID returns the most recently assigned id, if any payment
// exists (the counter is the next id, not the last).
func (c *Client) LatestPaymentID(ctx context.Context) (uint64, bool, error) {
	n, err := c.reader.PaymentCounter(ctx)
	if err != nil || n == 0 {
		return 0, false, err
	}
	return n - 1, true, nil
}

// CheckAuthorized reports whether addr holds the authorized-employer flag.
func (c *Client) CheckAuthorized(ctx context.Context, addr Address) (bool, error) {
	if addr.IsZero() {
		return false, fmt.Errorf("%w: empty address", ErrInvalidInput)
	}
	return c.reader.IsAuthorizedEmployer(ctx, addr)
}

func (c *Client) requireEmployer(ctx context.Context, actor Address) error {
	role, err := c.Role(ctx, actor)
	if err != nil {
		return err
	}
	if !role.IsEmployer() {
		return fmt.Errorf("%w: %s is not an employer", ErrAccessDenied, actor.Short())
	}
	return nil
}

// ScheduleDeposit funds and schedules a new payment. When the escrow's
// token allowance does not cover the amount, an approve runs (and confirms)
// first; the deposit itself is a second, separately coordinated mutation.
func (c *Client) ScheduleDeposit(ctx context.Context, actor Address, d Deposit) (Receipt, error) {
	if actor == "" {
		return Receipt{}, ErrNotConnected
	}
	if err := c.requireEmployer(ctx, actor); err != nil {
		return Receipt{}, err
	}
	if d.Recipient.IsZero() || d.Stablecoin.IsZero() {
		return Receipt{}, fmt.Errorf("%w: recipient and stablecoin are required", ErrInvalidInput)
	}
	if d.Amount == nil || d.Amount.Sign() <= 0 {
		return Receipt{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if d.ReleaseAt <= 0 {
		return Receipt{}, fmt.Errorf("%w: release time is required", ErrInvalidInput)
	}
	if d.PreferredPayout.IsZero() {
		d.PreferredPayout = d.Stablecoin
	}

	allowance, err := c.tokens.Allowance(ctx, d.Stablecoin, actor, c.escrow)
	if err != nil {
		return Receipt{}, err
	}
	if allowance.Cmp(d.Amount) < 0 {
		intent := ids.New()
		obs.Log(map[string]any{"event": "approve", "intent": intent, "actor": actor.Short(), "token": d.Stablecoin.Short()})
		if _, err := c.coord.Execute(ctx, "approve", "approve/"+string(d.Stablecoin)+"/"+string(actor),
			func(ctx context.Context) (TxHash, error) {
				return c.writer.Approve(ctx, actor, d.Stablecoin, c.escrow, d.Amount)
			}, nil); err != nil {
			return Receipt{}, err
		}
	}

	intent := ids.New()
	obs.Log(map[string]any{"event": "deposit_schedule", "intent": intent, "actor": actor.Short(), "recipient": d.Recipient.Short()})
	return c.coord.Execute(ctx, "deposit_schedule", "schedule/"+string(actor),
		func(ctx context.Context) (TxHash, error) {
			return c.writer.DepositAndSchedule(ctx, actor, d)
		},
		func(ctx context.Context) error {
			return c.inv.InvalidateCounter(ctx)
		})
}

// Claim releases a claimable payment to its recipient.
func (c *Client) Claim(ctx context.Context, actor Address, id uint64) (Receipt, error) {
	if actor == "" {
		return Receipt{}, ErrNotConnected
	}
	p, err := c.reader.Payment(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	if !p.Recipient.Equal(actor) {
		return Receipt{}, fmt.Errorf("%w: %s is not the recipient of payment %d", ErrAccessDenied, actor.Short(), id)
	}
	verified, err := c.reader.WorkVerified(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	if status := p.StatusAt(verified, c.now()); status != StatusClaimable {
		return Receipt{}, fmt.Errorf("%w: payment %d is %s", ErrInvalidInput, id, status)
	}

	intent := ids.New()
	obs.Log(map[string]any{"event": "claim", "intent": intent, "payment": id, "actor": actor.Short()})
	return c.coord.Execute(ctx, "claim", fmt.Sprintf("claim/%d", id),
		func(ctx context.Context) (TxHash, error) {
			return c.writer.ClaimPayment(ctx, actor, id)
		},
		func(ctx context.Context) error {
			return c.inv.InvalidatePayment(ctx, id)
		})
}

// VerifyWork runs the attestation protocol for one payment: local guards,
// digest, signature from the acting employer, then the ledger write. The
// guards run before any signing request is issued, and at most one
// attestation per payment id is in flight from this session.
func (c *Client) VerifyWork(ctx context.Context, actor Address, id uint64) (Receipt, error) {
	if actor == "" {
		return Receipt{}, ErrNotConnected
	}
	if err := c.requireEmployer(ctx, actor); err != nil {
		return Receipt{}, err
	}
	p, err := c.reader.Payment(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	if !p.RequiresWorkEvent {
		return Receipt{}, fmt.Errorf("%w: payment %d does not require work verification", ErrInvalidInput, id)
	}
	verified, err := c.reader.WorkVerified(ctx, id)
	if err != nil {
		return Receipt{}, err
	}
	if verified {
		return Receipt{}, fmt.Errorf("%w: payment %d is already verified", ErrInvalidInput, id)
	}

	digest, err := AttestationDigest(p.Recipient, id, actor)
	if err != nil {
		return Receipt{}, err
	}

	intent := ids.New()
	obs.Log(map[string]any{"event": "verify_work", "intent": intent, "payment": id, "actor": actor.Short()})
	rcpt, err := c.coord.Execute(ctx, "verify_work", fmt.Sprintf("verify/%d", id),
		func(ctx context.Context) (TxHash, error) {
			sig, err := c.signer.Sign(ctx, actor, digest)
			if err != nil {
				return "", err
			}
			return c.writer.VerifyWork(ctx, actor, id, sig)
		},
		func(ctx context.Context) error {
			return c.inv.InvalidatePayment(ctx, id)
		})
	if err == nil {
		obs.AttestationSubmitted()
	}
	return rcpt, err
}

// AddAuthorizedEmployer grants the authorized-employer flag. Main employer
// only; the ledger enforces this too, the local gate just avoids submitting
// a doomed transaction.
func (c *Client) AddAuthorizedEmployer(ctx context.Context, actor, employer Address) (Receipt, error) {
	return c.mutateAuthorization(ctx, actor, employer, "authorize_employer",
		func(ctx context.Context) (TxHash, error) {
			return c.writer.AddAuthorizedEmployer(ctx, actor, employer)
		})
}

// RemoveAuthorizedEmployer revokes the authorized-employer flag.
func (c *Client) RemoveAuthorizedEmployer(ctx context.Context, actor, employer Address) (Receipt, error) {
	return c.mutateAuthorization(ctx, actor, employer, "revoke_employer",
		func(ctx context.Context) (TxHash, error) {
			return c.writer.RemoveAuthorizedEmployer(ctx, actor, employer)
		})
}

func (c *Client) mutateAuthorization(ctx context.Context, actor, employer Address, action string, submit func(context.Context) (TxHash, error)) (Receipt, error) {
	if actor == "" {
		return Receipt{}, ErrNotConnected
	}
	role, err := c.Role(ctx, actor)
	if err != nil {
		return Receipt{}, err
	}
	if role != RoleMainEmployer {
		return Receipt{}, fmt.Errorf("%w: only the main employer may change authorizations", ErrAccessDenied)
	}
	if employer.IsZero() {
		return Receipt{}, fmt.Errorf("%w: empty employer address", ErrInvalidInput)
	}

	intent := ids.New()
	obs.Log(map[string]any{"event": action, "intent": intent, "employer": employer.Short()})
	// Add and remove share a key so they cannot race each other for the
	// same address. Authorization is never cached, so there is nothing to
	// invalidate on confirmation.
	return c.coord.Execute(ctx, action, "authorization/"+string(employer), submit, nil)
}
