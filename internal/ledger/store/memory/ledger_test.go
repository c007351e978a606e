package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"offsetledger/internal/ledger/models"
	"offsetledger/internal/ledger/store"
	"offsetledger/internal/outbox"
	id "offsetledger/pkg/domain"
	dErrors "offsetledger/pkg/domain-errors"
	"offsetledger/pkg/platform/sentinel"
)

type LedgerSuite struct {
	suite.Suite
	ledger *Ledger
	ctx    context.Context
	now    time.Time
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

func (s *LedgerSuite) SetupTest() {
	s.ledger = New()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

var errAbort = errors.New("abort")

func (s *LedgerSuite) newCert(owner id.PrincipalID, vid string) *models.Certificate {
	cert, err := models.NewCertificate(id.NewCertificateID(), owner, 1000, 1, id.VerificationID(vid), s.now)
	s.Require().NoError(err)
	return cert
}

func (s *LedgerSuite) mustTx(fn func(ctx context.Context, st store.Stores) error) {
	s.Require().NoError(s.ledger.RunInTx(s.ctx, fn))
}

func (s *LedgerSuite) activeIDs() []id.ListingID {
	var ids []id.ListingID
	s.Require().NoError(s.ledger.View(s.ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		ids, err = st.Listings.ActiveIDs(ctx)
		return err
	}))
	return ids
}

func (s *LedgerSuite) TestCertificates() {
	s.Run("create, find and move", func() {
		cert := s.newCert("alice", "v-1")
		listingID := id.NewListingID()
		s.mustTx(func(ctx context.Context, st store.Stores) error {
			if err := st.Certificates.Create(ctx, cert); err != nil {
				return err
			}
			found, err := st.Certificates.FindByID(ctx, cert.ID)
			if err != nil {
				return err
			}
			found.ApplyEscrow(listingID)
			return st.Certificates.UpdateLocation(ctx, found)
		})

		s.Require().NoError(s.ledger.View(s.ctx, func(ctx context.Context, st store.Stores) error {
			found, err := st.Certificates.FindByID(ctx, cert.ID)
			s.Require().NoError(err)
			held, ok := found.Location.Listing()
			s.True(ok)
			s.Equal(listingID, held)
			return nil
		}))
	})

	s.Run("returned pointers are copies", func() {
		cert := s.newCert("alice", "v-2")
		s.mustTx(func(ctx context.Context, st store.Stores) error {
			return st.Certificates.Create(ctx, cert)
		})
		cert.Location = models.Owned("mallory")

		s.Require().NoError(s.ledger.View(s.ctx, func(ctx context.Context, st store.Stores) error {
			found, err := st.Certificates.FindByID(ctx, cert.ID)
			s.Require().NoError(err)
			s.True(found.IsHeldBy("alice"))
			found.Location = models.Owned("mallory")
			again, err := st.Certificates.FindByID(ctx, cert.ID)
			s.Require().NoError(err)
			s.True(again.IsHeldBy("alice"))
			return nil
		}))
	})

	s.Run("missing certificate is ErrNotFound", func() {
		err := s.ledger.View(s.ctx, func(ctx context.Context, st store.Stores) error {
			_, err := st.Certificates.FindByID(ctx, id.NewCertificateID())
			return err
		})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("list by owner excludes escrowed and foreign certificates", func() {
		owned := s.newCert("carol", "v-3")
		escrowed := s.newCert("carol", "v-4")
		escrowed.ApplyEscrow(id.NewListingID())
		other := s.newCert("dave", "v-5")
		s.mustTx(func(ctx context.Context, st store.Stores) error {
			for _, c := range []*models.Certificate{owned, escrowed, other} {
				if err := st.Certificates.Create(ctx, c); err != nil {
					return err
				}
			}
			return nil
		})
		s.Require().NoError(s.ledger.View(s.ctx, func(ctx context.Context, st store.Stores) error {
			certs, err := st.Certificates.ListByOwner(ctx, "carol")
			s.Require().NoError(err)
			s.Require().Len(certs, 1)
			s.Equal(owned.ID, certs[0].ID)
			return nil
		}))
	})
}

func (s *LedgerSuite) TestVerificationRegistryIsWriteOnce() {
	certID := id.NewCertificateID()
	s.mustTx(func(ctx context.Context, st store.Stores) error {
		return st.Verifications.Register(ctx, "v-1", certID)
	})

	err := s.ledger.RunInTx(s.ctx, func(ctx context.Context, st store.Stores) error {
		return st.Verifications.Register(ctx, "v-1", id.NewCertificateID())
	})
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	s.Require().NoError(s.ledger.View(s.ctx, func(ctx context.Context, st store.Stores) error {
		got, err := st.Verifications.Lookup(ctx, "v-1")
		s.Require().NoError(err)
		s.Equal(certID, got)
		return nil
	}))
}

func (s *LedgerSuite) TestListingCollectionStaysInSyncWithIndex() {
	var ids []id.ListingID
	s.mustTx(func(ctx context.Context, st store.Stores) error {
		for range 4 {
			listing, err := models.NewListing(id.NewListingID(), id.NewCertificateID(), "alice", 10, s.now)
			s.Require().NoError(err)
			if err := st.Listings.Create(ctx, listing); err != nil {
				return err
			}
			ids = append(ids, listing.ID)
		}
		return nil
	})
	s.ElementsMatch(ids, s.activeIDs())

	s.Run("swap-remove from the middle", func() {
		s.mustTx(func(ctx context.Context, st store.Stores) error {
			return st.Listings.Delete(ctx, ids[1])
		})
		s.ElementsMatch([]id.ListingID{ids[0], ids[2], ids[3]}, s.activeIDs())
		for i, lid := range s.ledger.listingOrder {
			s.Equal(i, s.ledger.listingPos[lid])
		}
		s.Len(s.ledger.listings, 3)
	})

	s.Run("delete of missing listing is ErrNotFound", func() {
		err := s.ledger.RunInTx(s.ctx, func(ctx context.Context, st store.Stores) error {
			return st.Listings.Delete(ctx, ids[1])
		})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *LedgerSuite) TestRollbackRestoresEverything() {
	alice := s.newCert("alice", "v-1")
	keep, err := models.NewListing(id.NewListingID(), id.NewCertificateID(), "bob", 5, s.now)
	s.Require().NoError(err)
	first, err := models.NewListing(id.NewListingID(), id.NewCertificateID(), "bob", 6, s.now)
	s.Require().NoError(err)
	s.mustTx(func(ctx context.Context, st store.Stores) error {
		s.Require().NoError(st.Certificates.Create(ctx, alice))
		s.Require().NoError(st.Verifications.Register(ctx, alice.VerificationID, alice.ID))
		s.Require().NoError(st.Listings.Create(ctx, first))
		s.Require().NoError(st.Listings.Create(ctx, keep))
		_, err := st.Balances.Credit(ctx, "bob", 100)
		return err
	})
	orderBefore := append([]id.ListingID(nil), s.ledger.listingOrder...)

	err = s.ledger.RunInTx(s.ctx, func(ctx context.Context, st store.Stores) error {
		s.Require().NoError(st.Listings.Delete(ctx, first.ID))
		s.Require().NoError(st.Certificates.Delete(ctx, alice.ID))
		s.Require().NoError(st.Verifications.Register(ctx, "v-2", id.NewCertificateID()))
		_, err := st.Balances.Debit(ctx, "bob", 40)
		s.Require().NoError(err)
		_, err = st.Balances.Credit(ctx, "erin", 40)
		s.Require().NoError(err)
		entry, err := outbox.NewEntry(models.Cancelled{ListingID: first.ID}, s.now)
		s.Require().NoError(err)
		s.Require().NoError(st.Outbox.Append(ctx, entry))
		return errAbort
	})
	s.Require().ErrorIs(err, errAbort)

	s.Equal(orderBefore, s.ledger.listingOrder)
	s.Contains(s.ledger.listings, first.ID)
	s.Contains(s.ledger.certificates, alice.ID)
	s.NotContains(s.ledger.verifications, id.VerificationID("v-2"))
	s.Equal(uint64(100), s.ledger.balances["bob"])
	s.NotContains(s.ledger.balances, id.PrincipalID("erin"))
	s.Empty(s.ledger.outbox)
}

func (s *LedgerSuite) TestRollbackOnPanic() {
	cert := s.newCert("alice", "v-1")
	s.Panics(func() {
		_ = s.ledger.RunInTx(s.ctx, func(ctx context.Context, st store.Stores) error {
			s.Require().NoError(st.Certificates.Create(ctx, cert))
			panic("boom")
		})
	})
	s.Empty(s.ledger.certificates)

	// lock was released
	s.mustTx(func(ctx context.Context, st store.Stores) error {
		return st.Certificates.Create(ctx, cert)
	})
}

func (s *LedgerSuite) TestViewIsReadOnly() {
	err := s.ledger.View(s.ctx, func(ctx context.Context, st store.Stores) error {
		return st.Certificates.Create(ctx, s.newCert("alice", "v-1"))
	})
	s.ErrorIs(err, errReadOnly)
	s.Empty(s.ledger.certificates)
}

func (s *LedgerSuite) TestBalances() {
	s.mustTx(func(ctx context.Context, st store.Stores) error {
		bal, err := st.Balances.Credit(ctx, "bob", 50)
		s.Equal(uint64(50), bal)
		return err
	})

	err := s.ledger.RunInTx(s.ctx, func(ctx context.Context, st store.Stores) error {
		_, err := st.Balances.Debit(ctx, "bob", 51)
		return err
	})
	s.ErrorIs(err, sentinel.ErrInsufficient)

	s.Require().NoError(s.ledger.View(s.ctx, func(ctx context.Context, st store.Stores) error {
		bal, err := st.Balances.Get(ctx, "bob")
		s.Equal(uint64(50), bal)
		unknown, _ := st.Balances.Get(ctx, "nobody")
		s.Zero(unknown)
		return err
	}))
}

func (s *LedgerSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	called := false
	err := s.ledger.RunInTx(ctx, func(ctx context.Context, st store.Stores) error {
		called = true
		return nil
	})
	s.False(called)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *LedgerSuite) TestOutboxSource() {
	var entries []outbox.Entry
	for i := range 3 {
		e, err := outbox.NewEntry(models.Funded{Principal: "bob", Amount: uint64(i + 1)}, s.now)
		s.Require().NoError(err)
		entries = append(entries, e)
	}
	s.mustTx(func(ctx context.Context, st store.Stores) error {
		return st.Outbox.Append(ctx, entries...)
	})

	batch, err := s.ledger.FetchUnpublished(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(batch, 2)
	s.Equal(entries[0].ID, batch[0].ID)
	s.Equal(entries[1].ID, batch[1].ID)

	s.Require().NoError(s.ledger.MarkPublished(s.ctx, entryIDs(batch), s.now))
	rest, err := s.ledger.FetchUnpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(rest, 1)
	s.Equal(entries[2].ID, rest[0].ID)

	purged, err := s.ledger.PurgePublished(s.ctx, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(2, purged)
	s.Len(s.ledger.outbox, 1)
}

func entryIDs(entries []outbox.Entry) []uuid.UUID {
	out := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
