package escrow

// Role is the derived capability class of the connected identity. It is
// computed fresh from current ledger reads on every use and never cached
// across a session, because authorization can be revoked at any time.
type Role string

const (
	// RoleUnknown means the inputs are still loading. Callers must not
	// treat it as a denial; doing so flashes "access denied" at users
	// whose authorization read simply has not landed yet.
	RoleUnknown            Role = "unknown"
	RoleMainEmployer       Role = "main_employer"
	RoleAuthorizedEmployer Role = "authorized_employer"
	RoleRecipient          Role = "recipient"
)

// IsEmployer reports whether the role may schedule payments and verify work.
// Main and authorized employers are equivalent for those actions; only the
// main employer may mutate the authorization set.
func (r Role) IsEmployer() bool {
	return r == RoleMainEmployer || r == RoleAuthorizedEmployer
}

// ResolveRole derives the connected identity's role from the ledger's main
// employer and the identity's authorization flag. Either input may still be
// in flight; an unknown input yields RoleUnknown, never a negative result.
// An absent identity is ErrNotConnected, which is distinct from Recipient.
func ResolveRole(connected Address, mainEmployer Loadable[Address], authorized Loadable[bool]) (Role, error) {
	if connected == "" {
		return RoleUnknown, ErrNotConnected
	}
	if !mainEmployer.Known {
		return RoleUnknown, nil
	}
	if connected.Equal(mainEmployer.Value) {
		return RoleMainEmployer, nil
	}
	if !authorized.Known {
		return RoleUnknown, nil
	}
	if authorized.Value {
		return RoleAuthorizedEmployer, nil
	}
	return RoleRecipient, nil
}
