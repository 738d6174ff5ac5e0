package agreement

// QuorumPolicy decides when an agreement counts as fully signed.
type QuorumPolicy interface {
	Met(signers []Signer) bool
}

// CountQuorum is met once Required distinct users have signed. It does not
// look at who signed: two tenants satisfy a quorum of two just as an owner and
// a tenant do.
type CountQuorum struct {
	Required int
}

// DefaultQuorum is the owner plus tenant model.
var DefaultQuorum = CountQuorum{Required: 2}

func (q CountQuorum) Met(signers []Signer) bool {
	required := q.Required
	if required < 1 {
		required = 1
	}
	n := 0
	for _, s := range signers {
		if s.SignedAt != nil {
			n++
		}
	}
	return n >= required
}
