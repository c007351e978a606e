package models

import (
	"encoding/json"
	"fmt"
	"time"

	id "offsetledger/pkg/domain"
	dErrors "offsetledger/pkg/domain-errors"
)

// LocationKind tags where a certificate currently sits.
type LocationKind string

const (
	LocationOwned    LocationKind = "owned"
	LocationEscrowed LocationKind = "escrowed"
)

// Location is the single place a certificate lives: held by a principal or
// held in escrow by exactly one listing. The zero value is invalid.
type Location struct {
	kind    LocationKind
	owner   id.PrincipalID
	listing id.ListingID
}

// Owned places a certificate in a principal's hands.
func Owned(owner id.PrincipalID) Location {
	return Location{kind: LocationOwned, owner: owner}
}

// Escrowed places a certificate in custody of a listing.
func Escrowed(listing id.ListingID) Location {
	return Location{kind: LocationEscrowed, listing: listing}
}

func (l Location) Kind() LocationKind { return l.kind }

// Owner returns the holding principal when the certificate is in free circulation.
func (l Location) Owner() (id.PrincipalID, bool) {
	return l.owner, l.kind == LocationOwned
}

// Listing returns the escrow holder when the certificate is listed.
func (l Location) Listing() (id.ListingID, bool) {
	return l.listing, l.kind == LocationEscrowed
}

func (l Location) IsValid() bool {
	switch l.kind {
	case LocationOwned:
		return !l.owner.IsZero()
	case LocationEscrowed:
		return !l.listing.IsNil()
	}
	return false
}

func (l Location) String() string {
	switch l.kind {
	case LocationOwned:
		return "owned:" + l.owner.String()
	case LocationEscrowed:
		return "escrowed:" + l.listing.String()
	}
	return "invalid"
}

type locationJSON struct {
	Kind    LocationKind   `json:"kind"`
	Owner   id.PrincipalID `json:"owner,omitempty"`
	Listing *id.ListingID  `json:"listing_id,omitempty"`
}

func (l Location) MarshalJSON() ([]byte, error) {
	out := locationJSON{Kind: l.kind}
	if owner, ok := l.Owner(); ok {
		out.Owner = owner
	}
	if listing, ok := l.Listing(); ok {
		out.Listing = &listing
	}
	return json.Marshal(out)
}

func (l *Location) UnmarshalJSON(b []byte) error {
	var in locationJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	switch in.Kind {
	case LocationOwned:
		*l = Owned(in.Owner)
	case LocationEscrowed:
		if in.Listing == nil {
			return fmt.Errorf("escrowed location requires listing_id")
		}
		*l = Escrowed(*in.Listing)
	default:
		return fmt.Errorf("unknown location kind %q", in.Kind)
	}
	return nil
}

// Certificate is one verified offset unit.
//
// Invariants:
//   - Amount > 0 (grams CO2e)
//   - VerificationID is non-empty and unique across all certificates ever minted
//   - Location is always valid; it changes only through the Apply* transitions
//   - A certificate is never copied into two locations; stores persist exactly one row
type Certificate struct {
	ID             id.CertificateID  `json:"id"`
	Amount         uint64            `json:"amount"`
	ActivityCode   uint8             `json:"activity_code"`
	VerificationID id.VerificationID `json:"verification_id"`
	IssuedAt       time.Time         `json:"issued_at"`
	Location       Location          `json:"location"`
}

// NewCertificate constructs a freshly minted certificate held by recipient.
func NewCertificate(certID id.CertificateID, recipient id.PrincipalID, amount uint64, activityCode uint8, verificationID id.VerificationID, issuedAt time.Time) (*Certificate, error) {
	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "amount must be greater than zero")
	}
	if certID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "certificate id required")
	}
	if recipient.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "recipient required")
	}
	if verificationID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verification id required")
	}
	return &Certificate{
		ID:             certID,
		Amount:         amount,
		ActivityCode:   activityCode,
		VerificationID: verificationID,
		IssuedAt:       issuedAt,
		Location:       Owned(recipient),
	}, nil
}

// IsHeldBy reports whether p holds the certificate in free circulation.
func (c *Certificate) IsHeldBy(p id.PrincipalID) bool {
	owner, ok := c.Location.Owner()
	return ok && owner == p
}

// checkHolder is shared by the list and retire transitions: the caller must hold
// the certificate and it must not be sitting in escrow.
func (c *Certificate) checkHolder(caller id.PrincipalID) error {
	if _, escrowed := c.Location.Listing(); escrowed {
		return dErrors.New(dErrors.CodeInvalidState, "certificate is escrowed in a listing")
	}
	if !c.IsHeldBy(caller) {
		return dErrors.New(dErrors.CodeUnauthorized, "caller does not hold certificate")
	}
	return nil
}

// CanEscrow checks that caller may deposit the certificate into a listing.
func (c *Certificate) CanEscrow(caller id.PrincipalID) error {
	return c.checkHolder(caller)
}

// ApplyEscrow moves the certificate into custody of listing.
// Call CanEscrow first.
func (c *Certificate) ApplyEscrow(listing id.ListingID) {
	c.Location = Escrowed(listing)
}

// ApplyRelease moves the certificate out of listing's custody to a principal.
// It refuses to release from any other listing so a stale listing can never
// hand out a certificate it no longer holds.
func (c *Certificate) ApplyRelease(listing id.ListingID, to id.PrincipalID) error {
	held, ok := c.Location.Listing()
	if !ok || held != listing {
		return dErrors.New(dErrors.CodeInvariantViolation, "certificate not escrowed by listing")
	}
	c.Location = Owned(to)
	return nil
}

// CanRetire checks that caller may consume the certificate.
func (c *Certificate) CanRetire(caller id.PrincipalID) error {
	return c.checkHolder(caller)
}
