package models

import (
	"time"

	id "offsetledger/pkg/domain"
	dErrors "offsetledger/pkg/domain-errors"
)

// RetirementCertificate is the non-transferable proof left behind when a
// certificate is consumed. Nothing can change its owner. Freezing is a one-way
// immutability flag with no further business meaning.
type RetirementCertificate struct {
	ID                    id.RetirementID   `json:"id"`
	OriginalCertificateID id.CertificateID  `json:"original_certificate_id"`
	Retirer               id.PrincipalID    `json:"retirer"`
	Amount                uint64            `json:"amount"`
	VerificationID        id.VerificationID `json:"verification_id"`
	RetiredAt             time.Time         `json:"retired_at"`
	Frozen                bool              `json:"frozen"`
	FrozenAt              *time.Time        `json:"frozen_at,omitempty"`
}

// NewRetirementCertificate carries amount and verification id over unchanged
// from the consumed certificate.
func NewRetirementCertificate(retirementID id.RetirementID, cert *Certificate, retirer id.PrincipalID, now time.Time) *RetirementCertificate {
	return &RetirementCertificate{
		ID:                    retirementID,
		OriginalCertificateID: cert.ID,
		Retirer:               retirer,
		Amount:                cert.Amount,
		VerificationID:        cert.VerificationID,
		RetiredAt:             now,
	}
}

// CanFreeze checks ownership and that the proof is not already frozen.
func (r *RetirementCertificate) CanFreeze(caller id.PrincipalID) error {
	if caller != r.Retirer {
		return dErrors.New(dErrors.CodeUnauthorized, "only the retirer can freeze a retirement certificate")
	}
	if r.Frozen {
		return dErrors.New(dErrors.CodeAlreadyFrozen, "retirement certificate already frozen")
	}
	return nil
}

// ApplyFreeze marks the proof immutable. Call CanFreeze first.
func (r *RetirementCertificate) ApplyFreeze(now time.Time) {
	r.Frozen = true
	r.FrozenAt = &now
}
