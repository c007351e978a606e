package models

import (
	"time"

	id "offsetledger/pkg/domain"
	dErrors "offsetledger/pkg/domain-errors"
)

// Listing escrows one certificate for sale at a fixed price. A listing is
// destroyed when it is bought or cancelled; there is no "sold" row.
type Listing struct {
	ID            id.ListingID     `json:"id"`
	CertificateID id.CertificateID `json:"certificate_id"`
	Price         uint64           `json:"price"`
	Seller        id.PrincipalID   `json:"seller"`
	CreatedAt     time.Time        `json:"created_at"`
}

// NewListing records a deposit by seller. Price has no lower bound.
func NewListing(listingID id.ListingID, certID id.CertificateID, seller id.PrincipalID, price uint64, now time.Time) (*Listing, error) {
	if listingID.IsNil() || certID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "listing and certificate ids required")
	}
	if seller.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "seller required")
	}
	return &Listing{
		ID:            listingID,
		CertificateID: certID,
		Price:         price,
		Seller:        seller,
		CreatedAt:     now,
	}, nil
}

// CanCancel enforces that only the recorded seller withdraws the listing.
func (l *Listing) CanCancel(caller id.PrincipalID) error {
	if caller != l.Seller {
		return dErrors.New(dErrors.CodeUnauthorized, "only the seller can cancel a listing")
	}
	return nil
}

// CheckPayment enforces exact-price settlement.
func (l *Listing) CheckPayment(payment uint64) error {
	if payment != l.Price {
		return dErrors.New(dErrors.CodePriceMismatch, "payment does not equal listing price")
	}
	return nil
}

// Receipt is returned to the buyer after a completed purchase.
type Receipt struct {
	ListingID     id.ListingID     `json:"listing_id"`
	CertificateID id.CertificateID `json:"certificate_id"`
	Seller        id.PrincipalID   `json:"seller"`
	Buyer         id.PrincipalID   `json:"buyer"`
	Price         uint64           `json:"price"`
	SoldAt        time.Time        `json:"sold_at"`
}
