// Package credential implements the mint capability: the one token that lets
// its holder create certificates.
//
// The capability is passed explicitly into privileged calls. It is never
// derived from the caller's identity, so authorization can be unit tested
// without a simulated identity system.
package credential

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	id "offsetledger/pkg/domain"
	dErrors "offsetledger/pkg/domain-errors"
)

// noCopy makes `go vet` flag accidental copies of a capability.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// MintCapability proves minting rights. Only an Authority can create one and
// the service accepts only the exact pointer its Authority issued, so a value
// built elsewhere (or a copy) is rejected.
type MintCapability struct {
	_         noCopy
	id        uuid.UUID
	holder    id.PrincipalID
	authority *Authority
}

// Holder is the principal the capability was issued to at bootstrap.
func (c *MintCapability) Holder() id.PrincipalID { return c.holder }

// Authority issues exactly one MintCapability for its lifetime and verifies
// capabilities presented to privileged operations.
type Authority struct {
	once       sync.Once
	capability *MintCapability
	holder     id.PrincipalID
	secretHash []byte
}

// Bootstrap creates the authority for holder. secretHash is a bcrypt hash of
// the secret remote callers present to redeem the capability; an empty hash
// disables redemption so only in-process callers can mint.
func Bootstrap(holder id.PrincipalID, secretHash []byte) (*Authority, error) {
	if holder.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "capability holder required")
	}
	if len(secretHash) > 0 {
		if _, err := bcrypt.Cost(secretHash); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "mint credential hash is not a bcrypt hash")
		}
	}
	return &Authority{holder: holder, secretHash: secretHash}, nil
}

// Capability returns the single capability, creating it on first use.
func (a *Authority) Capability() *MintCapability {
	a.once.Do(func() {
		a.capability = &MintCapability{id: uuid.New(), holder: a.holder, authority: a}
	})
	return a.capability
}

// Verify accepts only the capability this authority issued.
func (a *Authority) Verify(c *MintCapability) error {
	if c == nil || a == nil {
		return dErrors.New(dErrors.CodeUnauthorized, "mint capability required")
	}
	if c.authority != a || c != a.Capability() {
		return dErrors.New(dErrors.CodeUnauthorized, "mint capability not recognized")
	}
	return nil
}

// Redeem exchanges the bootstrap secret for the capability.
func (a *Authority) Redeem(secret string) (*MintCapability, error) {
	if len(a.secretHash) == 0 || secret == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "mint credential required")
	}
	if err := bcrypt.CompareHashAndPassword(a.secretHash, []byte(secret)); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid mint credential")
	}
	return a.Capability(), nil
}

// HashSecret produces the bcrypt hash operators put in MINT_CREDENTIAL_HASH.
func HashSecret(secret string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
}
