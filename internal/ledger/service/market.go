package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"offsetledger/internal/ledger/models"
	"offsetledger/internal/ledger/store"
	id "offsetledger/pkg/domain"
	dErrors "offsetledger/pkg/domain-errors"
	"offsetledger/pkg/platform/sentinel"
	"offsetledger/pkg/requestcontext"
)

// List deposits caller's certificate into a new listing at price.
func (s *Service) List(ctx context.Context, caller id.PrincipalID, certID id.CertificateID, price uint64) (listingID id.ListingID, err error) {
	ctx, done := s.observe(ctx, "list", attribute.String("certificate_id", certID.String()))
	defer func() { done(err) }()

	if caller.IsZero() {
		return id.ListingID{}, dErrors.New(dErrors.CodeUnauthorized, "caller required")
	}

	now := requestcontext.Now(ctx)
	listingID = id.NewListingID()
	err = s.ledger.RunInTx(ctx, func(ctx context.Context, st store.Stores) error {
		cert, err := st.Certificates.FindByID(ctx, certID)
		if err != nil {
			return notFound(err, "certificate not found")
		}
		if err := cert.CanEscrow(caller); err != nil {
			return err
		}
		listing, err := models.NewListing(listingID, cert.ID, caller, price, now)
		if err != nil {
			return err
		}
		if err := st.Listings.Create(ctx, listing); err != nil {
			return err
		}
		cert.ApplyEscrow(listing.ID)
		if err := st.Certificates.UpdateLocation(ctx, cert); err != nil {
			return err
		}
		return emit(ctx, st.Outbox, now, models.Listed{
			ListingID:     listing.ID,
			CertificateID: cert.ID,
			Seller:        caller,
			Price:         price,
		})
	})
	if err != nil {
		return id.ListingID{}, finalize(err)
	}
	if s.metrics != nil {
		s.metrics.ListingOpened()
	}
	return listingID, nil
}

// Buy swaps exactly the listed price from buyer to seller for the escrowed
// certificate. A racing buyer that loses observes NotFound.
func (s *Service) Buy(ctx context.Context, buyer id.PrincipalID, listingID id.ListingID, payment uint64) (cert *models.Certificate, receipt *models.Receipt, err error) {
	ctx, done := s.observe(ctx, "buy", attribute.String("listing_id", listingID.String()))
	defer func() { done(err) }()

	if buyer.IsZero() {
		return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "caller required")
	}

	now := requestcontext.Now(ctx)
	err = s.ledger.RunInTx(ctx, func(ctx context.Context, st store.Stores) error {
		listing, err := st.Listings.FindByID(ctx, listingID)
		if err != nil {
			return notFound(err, "listing not found")
		}
		if err := listing.CheckPayment(payment); err != nil {
			return err
		}
		cert, err = st.Certificates.FindByID(ctx, listing.CertificateID)
		if err != nil {
			return err
		}
		if err := transfer(ctx, st.Balances, buyer, listing.Seller, listing.Price); err != nil {
			return err
		}
		if err := st.Listings.Delete(ctx, listing.ID); err != nil {
			return err
		}
		if err := cert.ApplyRelease(listing.ID, buyer); err != nil {
			return err
		}
		if err := st.Certificates.UpdateLocation(ctx, cert); err != nil {
			return err
		}
		receipt = &models.Receipt{
			ListingID:     listing.ID,
			CertificateID: cert.ID,
			Seller:        listing.Seller,
			Buyer:         buyer,
			Price:         listing.Price,
			SoldAt:        now,
		}
		return emit(ctx, st.Outbox, now, models.Sold{
			ListingID:     listing.ID,
			CertificateID: cert.ID,
			Seller:        listing.Seller,
			Buyer:         buyer,
			Price:         listing.Price,
		})
	})
	if err != nil {
		return nil, nil, finalize(err)
	}
	if s.metrics != nil {
		s.metrics.ListingClosed()
		s.metrics.Settled(receipt.Price)
	}
	return cert, receipt, nil
}

// transfer moves amount from buyer to seller. A seller buying back their own
// listing pays themselves, so balances are left alone.
func transfer(ctx context.Context, balances store.Balances, buyer, seller id.PrincipalID, amount uint64) error {
	if buyer == seller || amount == 0 {
		return nil
	}
	if err := balances.Lock(ctx, buyer, seller); err != nil {
		return err
	}
	if _, err := balances.Debit(ctx, buyer, amount); err != nil {
		if errors.Is(err, sentinel.ErrInsufficient) {
			return dErrors.New(dErrors.CodeInsufficientFunds, "buyer balance below price")
		}
		return err
	}
	if _, err := balances.Credit(ctx, seller, amount); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.New(dErrors.CodeInvalidAmount, "seller balance would overflow")
		}
		return err
	}
	return nil
}

// Cancel withdraws a listing and hands the certificate back to its seller
// exactly as deposited.
func (s *Service) Cancel(ctx context.Context, caller id.PrincipalID, listingID id.ListingID) (cert *models.Certificate, err error) {
	ctx, done := s.observe(ctx, "cancel", attribute.String("listing_id", listingID.String()))
	defer func() { done(err) }()

	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller required")
	}

	now := requestcontext.Now(ctx)
	err = s.ledger.RunInTx(ctx, func(ctx context.Context, st store.Stores) error {
		listing, err := st.Listings.FindByID(ctx, listingID)
		if err != nil {
			return notFound(err, "listing not found")
		}
		if err := listing.CanCancel(caller); err != nil {
			return err
		}
		cert, err = st.Certificates.FindByID(ctx, listing.CertificateID)
		if err != nil {
			return err
		}
		if err := st.Listings.Delete(ctx, listing.ID); err != nil {
			return err
		}
		if err := cert.ApplyRelease(listing.ID, listing.Seller); err != nil {
			return err
		}
		if err := st.Certificates.UpdateLocation(ctx, cert); err != nil {
			return err
		}
		return emit(ctx, st.Outbox, now, models.Cancelled{
			ListingID:     listing.ID,
			CertificateID: cert.ID,
			Seller:        listing.Seller,
		})
	})
	if err != nil {
		return nil, finalize(err)
	}
	if s.metrics != nil {
		s.metrics.ListingClosed()
	}
	return cert, nil
}

// ActiveListings enumerates live listing ids. Order is unspecified.
func (s *Service) ActiveListings(ctx context.Context) (ids []id.ListingID, err error) {
	ctx, done := s.observe(ctx, "active_listings")
	defer func() { done(err) }()

	err = s.ledger.View(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		ids, err = st.Listings.ActiveIDs(ctx)
		return err
	})
	if err != nil {
		return nil, finalize(err)
	}
	if s.metrics != nil {
		s.metrics.SetActiveListings(len(ids))
	}
	return ids, nil
}

func (s *Service) GetListing(ctx context.Context, listingID id.ListingID) (listing *models.Listing, err error) {
	ctx, done := s.observe(ctx, "get_listing")
	defer func() { done(err) }()

	err = s.ledger.View(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		listing, err = st.Listings.FindByID(ctx, listingID)
		return notFound(err, "listing not found")
	})
	if err != nil {
		return nil, finalize(err)
	}
	return listing, nil
}
