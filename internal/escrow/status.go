package escrow

// PaymentStatus is the derived lifecycle state of a payment. It is never
// persisted; it is recomputed from ledger facts plus wall-clock time.
type PaymentStatus string

const (
	StatusPending      PaymentStatus = "pending"
	StatusWorkRequired PaymentStatus = "work_required"
	StatusClaimable    PaymentStatus = "claimable"
	StatusClaimed      PaymentStatus = "claimed"
)

// ResolveStatus maps a payment's facts and the current time to its status.
// The clauses are ordered: claimed wins over everything, and the time lock
// wins over work-gating so a payment never looks actionable before its
// release instant. Timestamps are Unix seconds.
func ResolveStatus(claimed bool, releaseAt int64, workVerified, requiresWorkEvent bool, now int64) PaymentStatus {
	switch {
	case claimed:
		return StatusClaimed
	case now < releaseAt:
		return StatusPending
	case requiresWorkEvent && !workVerified:
		return StatusWorkRequired
	default:
		return StatusClaimable
	}
}

// StatusAt resolves the payment's status given its verification flag.
func (p Payment) StatusAt(workVerified bool, now int64) PaymentStatus {
	return ResolveStatus(p.Claimed, p.ReleaseAt, workVerified, p.RequiresWorkEvent, now)
}

// Display filters. These are view policy layered on top of ResolveStatus,
// kept separate so the resolver stays reusable for the full employer list.

// UpcomingOnly keeps payments still locked behind their release time.
func UpcomingOnly(s PaymentStatus) bool { return s == StatusPending }

// ActionableByRecipient keeps payments the recipient can claim right now.
func ActionableByRecipient(s PaymentStatus) bool { return s == StatusClaimable }

// AwaitingVerification keeps payments blocked only on a work attestation.
func AwaitingVerification(s PaymentStatus) bool { return s == StatusWorkRequired }
