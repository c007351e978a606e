package handler

import (
	"time"

	"offsetledger/internal/ledger/models"
	id "offsetledger/pkg/domain"
)

type LocationResponse struct {
	Kind      string `json:"kind"`
	Owner     string `json:"owner,omitempty"`
	ListingID string `json:"listing_id,omitempty"`
}

type CertificateResponse struct {
	ID             string           `json:"id"`
	Amount         uint64           `json:"amount"`
	ActivityCode   uint8            `json:"activity_code"`
	VerificationID string           `json:"verification_id"`
	IssuedAt       time.Time        `json:"issued_at"`
	Location       LocationResponse `json:"location"`
}

func toCertificateResponse(c *models.Certificate) *CertificateResponse {
	resp := &CertificateResponse{
		ID:             c.ID.String(),
		Amount:         c.Amount,
		ActivityCode:   c.ActivityCode,
		VerificationID: c.VerificationID.String(),
		IssuedAt:       c.IssuedAt,
		Location:       LocationResponse{Kind: string(c.Location.Kind())},
	}
	if owner, ok := c.Location.Owner(); ok {
		resp.Location.Owner = owner.String()
	}
	if listing, ok := c.Location.Listing(); ok {
		resp.Location.ListingID = listing.String()
	}
	return resp
}

type CertificatesResponse struct {
	Certificates []*CertificateResponse `json:"certificates"`
}

type ListingResponse struct {
	ID            string    `json:"id"`
	CertificateID string    `json:"certificate_id"`
	Price         uint64    `json:"price"`
	Seller        string    `json:"seller"`
	CreatedAt     time.Time `json:"created_at"`
}

func toListingResponse(l *models.Listing) *ListingResponse {
	return &ListingResponse{
		ID:            l.ID.String(),
		CertificateID: l.CertificateID.String(),
		Price:         l.Price,
		Seller:        l.Seller.String(),
		CreatedAt:     l.CreatedAt,
	}
}

type ListingCreatedResponse struct {
	ListingID string `json:"listing_id"`
}

// ActiveListingsResponse carries listing ids in the ledger's enumeration
// order, which is not stable across removals.
type ActiveListingsResponse struct {
	Listings []string `json:"listings"`
}

func toActiveListingsResponse(ids []id.ListingID) *ActiveListingsResponse {
	out := make([]string, len(ids))
	for i, l := range ids {
		out[i] = l.String()
	}
	return &ActiveListingsResponse{Listings: out}
}

type ReceiptResponse struct {
	ListingID     string    `json:"listing_id"`
	CertificateID string    `json:"certificate_id"`
	Seller        string    `json:"seller"`
	Buyer         string    `json:"buyer"`
	Price         uint64    `json:"price"`
	SoldAt        time.Time `json:"sold_at"`
}

type BuyResponse struct {
	Certificate *CertificateResponse `json:"certificate"`
	Receipt     ReceiptResponse      `json:"receipt"`
}

func toBuyResponse(c *models.Certificate, r *models.Receipt) *BuyResponse {
	return &BuyResponse{
		Certificate: toCertificateResponse(c),
		Receipt: ReceiptResponse{
			ListingID:     r.ListingID.String(),
			CertificateID: r.CertificateID.String(),
			Seller:        r.Seller.String(),
			Buyer:         r.Buyer.String(),
			Price:         r.Price,
			SoldAt:        r.SoldAt,
		},
	}
}

type RetirementResponse struct {
	ID                    string     `json:"id"`
	OriginalCertificateID string     `json:"original_certificate_id"`
	Retirer               string     `json:"retirer"`
	Amount                uint64     `json:"amount"`
	VerificationID        string     `json:"verification_id"`
	RetiredAt             time.Time  `json:"retired_at"`
	Frozen                bool       `json:"frozen"`
	FrozenAt              *time.Time `json:"frozen_at,omitempty"`
}

func toRetirementResponse(r *models.RetirementCertificate) *RetirementResponse {
	return &RetirementResponse{
		ID:                    r.ID.String(),
		OriginalCertificateID: r.OriginalCertificateID.String(),
		Retirer:               r.Retirer.String(),
		Amount:                r.Amount,
		VerificationID:        r.VerificationID.String(),
		RetiredAt:             r.RetiredAt,
		Frozen:                r.Frozen,
		FrozenAt:              r.FrozenAt,
	}
}

type RetirementsResponse struct {
	Retirements []*RetirementResponse `json:"retirements"`
}

type BalanceResponse struct {
	Principal string `json:"principal"`
	Balance   uint64 `json:"balance"`
}
