package handler

import (
	"strings"

	id "offsetledger/pkg/domain"
	dErrors "offsetledger/pkg/domain-errors"
)

// MintRequest is the body of POST /v1/certificates/mint.
type MintRequest struct {
	Credential     string `json:"credential"`
	Recipient      string `json:"recipient"`
	Amount         uint64 `json:"amount"`
	ActivityCode   uint8  `json:"activity_code"`
	VerificationID string `json:"verification_id"`

	recipient      id.PrincipalID
	verificationID id.VerificationID
}

func (r *MintRequest) Normalize() {
	r.Recipient = strings.TrimSpace(r.Recipient)
	r.VerificationID = strings.TrimSpace(r.VerificationID)
}

// Validate parses identifiers only. Amount rules belong to the ledger so the
// same rejection comes back whether minting over HTTP or in process.
func (r *MintRequest) Validate() error {
	if r.Credential == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "credential is required")
	}
	recipient, err := id.ParsePrincipalID(r.Recipient)
	if err != nil {
		return err
	}
	vid, err := id.ParseVerificationID(r.VerificationID)
	if err != nil {
		return err
	}
	r.recipient, r.verificationID = recipient, vid
	return nil
}

// FundRequest is the body of POST /v1/balances/fund.
type FundRequest struct {
	Credential string `json:"credential"`
	Principal  string `json:"principal"`
	Amount     uint64 `json:"amount"`

	principal id.PrincipalID
}

func (r *FundRequest) Normalize() {
	r.Principal = strings.TrimSpace(r.Principal)
}

func (r *FundRequest) Validate() error {
	if r.Credential == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "credential is required")
	}
	p, err := id.ParsePrincipalID(r.Principal)
	if err != nil {
		return err
	}
	r.principal = p
	return nil
}

// ListRequest is the body of POST /v1/listings.
type ListRequest struct {
	CertificateID string `json:"certificate_id"`
	Price         uint64 `json:"price"`

	certificateID id.CertificateID
}

func (r *ListRequest) Normalize() {
	r.CertificateID = strings.TrimSpace(r.CertificateID)
}

func (r *ListRequest) Validate() error {
	cid, err := id.ParseCertificateID(r.CertificateID)
	if err != nil {
		return err
	}
	r.certificateID = cid
	return nil
}

// BuyRequest is the body of POST /v1/listings/{id}/buy. Payment must equal
// the listing price exactly.
type BuyRequest struct {
	Payment uint64 `json:"payment"`
}
