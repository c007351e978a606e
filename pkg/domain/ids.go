package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "offsetledger/pkg/domain-errors"
)

// Typed identifiers keep certificate, listing and retirement ids from being
// passed where another kind is expected. All three are UUIDs underneath.
type (
	CertificateID uuid.UUID
	ListingID     uuid.UUID
	RetirementID  uuid.UUID
)

func NewCertificateID() CertificateID { return CertificateID(uuid.New()) }
func NewListingID() ListingID         { return ListingID(uuid.New()) }
func NewRetirementID() RetirementID   { return RetirementID(uuid.New()) }

func (id CertificateID) String() string { return uuid.UUID(id).String() }
func (id ListingID) String() string     { return uuid.UUID(id).String() }
func (id RetirementID) String() string  { return uuid.UUID(id).String() }

func (id CertificateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ListingID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id RetirementID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

func (id CertificateID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ListingID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id RetirementID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }

func (id *CertificateID) UnmarshalText(b []byte) error {
	parsed, err := ParseCertificateID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ListingID) UnmarshalText(b []byte) error {
	parsed, err := ParseListingID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *RetirementID) UnmarshalText(b []byte) error {
	parsed, err := ParseRetirementID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseCertificateID parses external input into a CertificateID.
// Errors: CodeInvalidInput when the value is empty, malformed or the nil UUID.
func ParseCertificateID(s string) (CertificateID, error) {
	u, err := parseUUID(s, "certificate id")
	return CertificateID(u), err
}

// ParseListingID parses external input into a ListingID.
func ParseListingID(s string) (ListingID, error) {
	u, err := parseUUID(s, "listing id")
	return ListingID(u), err
}

// ParseRetirementID parses external input into a RetirementID.
func ParseRetirementID(s string) (RetirementID, error) {
	u, err := parseUUID(s, "retirement id")
	return RetirementID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

// PrincipalID names an account that can hold certificates and balances. It is
// whatever address the wallet layer uses; the ledger only requires it to be a
// short printable token.
type PrincipalID string

const maxPrincipalLen = 128

// ParsePrincipalID validates a principal address from external input.
//
// Errors: CodeInvalidInput when empty, too long, or containing characters
// outside [A-Za-z0-9-_.:@].
func ParsePrincipalID(s string) (PrincipalID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal cannot be empty")
	}
	if len(s) > maxPrincipalLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal too long")
	}
	for _, r := range s {
		if !isPrincipalRune(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "principal contains invalid characters")
		}
	}
	return PrincipalID(s), nil
}

func isPrincipalRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case strings.ContainsRune("-_.:@", r):
		return true
	}
	return false
}

func (p PrincipalID) String() string { return string(p) }
func (p PrincipalID) IsZero() bool   { return p == "" }

// VerificationID is the opaque identifier the off-chain verifier assigns to one
// real-world event. The ledger never interprets it; it only refuses reuse.
type VerificationID string

const maxVerificationIDLen = 256

// ParseVerificationID accepts any non-empty value up to 256 bytes.
func ParseVerificationID(s string) (VerificationID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "verification id cannot be empty")
	}
	if len(s) > maxVerificationIDLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "verification id too long")
	}
	return VerificationID(s), nil
}

func (v VerificationID) String() string { return string(v) }
func (v VerificationID) Bytes() []byte  { return []byte(v) }
