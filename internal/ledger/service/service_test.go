package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"offsetledger/internal/ledger/credential"
	"offsetledger/internal/ledger/metrics"
	"offsetledger/internal/ledger/models"
	"offsetledger/internal/ledger/store/memory"
	id "offsetledger/pkg/domain"
	dErrors "offsetledger/pkg/domain-errors"
	"offsetledger/pkg/requestcontext"
)

const (
	alice = id.PrincipalID("alice")
	bob   = id.PrincipalID("bob")
	carol = id.PrincipalID("carol")
)

type ServiceSuite struct {
	suite.Suite
	ledger    *memory.Ledger
	authority *credential.Authority
	cap       *credential.MintCapability
	metrics   *metrics.Metrics
	service   *Service
	ctx       context.Context
	now       time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	var err error
	s.ledger = memory.New()
	s.authority, err = credential.Bootstrap("minter", nil)
	s.Require().NoError(err)
	s.cap = s.authority.Capability()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.ledger, s.authority, WithMetrics(s.metrics))
	s.now = time.Date(2026, 4, 22, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.T().Helper()
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), "error: %v", err)
}

func (s *ServiceSuite) mint(to id.PrincipalID, amount uint64, vid string) *models.Certificate {
	s.T().Helper()
	cert, err := s.service.Mint(s.ctx, s.cap, to, amount, 1, id.VerificationID(vid))
	s.Require().NoError(err)
	return cert
}

func (s *ServiceSuite) fund(p id.PrincipalID, amount uint64) {
	s.T().Helper()
	_, err := s.service.Fund(s.ctx, s.cap, p, amount)
	s.Require().NoError(err)
}

func (s *ServiceSuite) balance(p id.PrincipalID) uint64 {
	s.T().Helper()
	bal, err := s.service.Balance(s.ctx, p)
	s.Require().NoError(err)
	return bal
}

func (s *ServiceSuite) activeListings() []id.ListingID {
	s.T().Helper()
	ids, err := s.service.ActiveListings(s.ctx)
	s.Require().NoError(err)
	return ids
}

// eventTypes drains the outbox and returns event types in append order.
func (s *ServiceSuite) eventTypes() []string {
	s.T().Helper()
	entries, err := s.ledger.FetchUnpublished(s.ctx, 1000)
	s.Require().NoError(err)
	var out []string
	var ids []uuid.UUID
	for _, e := range entries {
		out = append(out, e.EventType)
		ids = append(ids, e.ID)
	}
	s.Require().NoError(s.ledger.MarkPublished(s.ctx, ids, s.now))
	return out
}

func (s *ServiceSuite) TestMint() {
	s.Run("issues certificate to recipient", func() {
		cert := s.mint(alice, 5000, "evt-001")
		s.Equal(uint64(5000), cert.Amount)
		s.Equal(uint8(1), cert.ActivityCode)
		s.Equal(id.VerificationID("evt-001"), cert.VerificationID)
		s.Equal(s.now, cert.IssuedAt)
		s.True(cert.IsHeldBy(alice))

		stored, err := s.service.GetCertificate(s.ctx, cert.ID)
		s.Require().NoError(err)
		s.Equal(cert, stored)
		s.Equal([]string{"minted"}, s.eventTypes())
	})

	s.Run("rejects reused verification id and creates nothing", func() {
		before, err := s.service.CertificatesByOwner(s.ctx, bob)
		s.Require().NoError(err)

		s.mint(bob, 10, "evt-dup")
		_, err = s.service.Mint(s.ctx, s.cap, bob, 10, 1, "evt-dup")
		s.requireCode(err, dErrors.CodeDuplicateVerification)

		after, err := s.service.CertificatesByOwner(s.ctx, bob)
		s.Require().NoError(err)
		s.Len(after, len(before)+1)
		s.Equal([]string{"minted"}, s.eventTypes())
	})

	s.Run("rejects zero amount", func() {
		_, err := s.service.Mint(s.ctx, s.cap, alice, 0, 1, "evt-zero")
		s.requireCode(err, dErrors.CodeInvalidAmount)

		// the id was not burned by the failed call
		s.mint(alice, 1, "evt-zero")
	})

	s.Run("rejects missing or foreign capability", func() {
		_, err := s.service.Mint(s.ctx, nil, alice, 10, 1, "evt-nocap")
		s.requireCode(err, dErrors.CodeUnauthorized)

		other, err := credential.Bootstrap("minter", nil)
		s.Require().NoError(err)
		_, err = s.service.Mint(s.ctx, other.Capability(), alice, 10, 1, "evt-nocap")
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("checks capability before amount", func() {
		_, err := s.service.Mint(s.ctx, nil, alice, 0, 1, "evt-order")
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("rejects empty verification id and recipient", func() {
		_, err := s.service.Mint(s.ctx, s.cap, alice, 1, 1, "")
		s.requireCode(err, dErrors.CodeBadRequest)
		_, err = s.service.Mint(s.ctx, s.cap, "", 1, 1, "evt-anon")
		s.requireCode(err, dErrors.CodeBadRequest)
	})
}

func (s *ServiceSuite) TestMintAmountsRoundTrip() {
	for i, amount := range []uint64{1, 2, 999, 5000, 1 << 40, ^uint64(0)} {
		cert := s.mint(alice, amount, fmt.Sprintf("evt-amount-%d", i))
		s.Equal(amount, cert.Amount)
	}
}

func (s *ServiceSuite) TestListAndCancelRoundTrip() {
	cert := s.mint(alice, 5000, "evt-001")
	s.eventTypes()

	listingID, err := s.service.List(s.ctx, alice, cert.ID, 1000)
	s.Require().NoError(err)
	s.Contains(s.activeListings(), listingID)

	escrowed, err := s.service.GetCertificate(s.ctx, cert.ID)
	s.Require().NoError(err)
	held, ok := escrowed.Location.Listing()
	s.True(ok)
	s.Equal(listingID, held)

	listing, err := s.service.GetListing(s.ctx, listingID)
	s.Require().NoError(err)
	s.Equal(alice, listing.Seller)
	s.Equal(uint64(1000), listing.Price)
	s.Equal(cert.ID, listing.CertificateID)

	s.Run("non-seller cannot cancel", func() {
		_, err := s.service.Cancel(s.ctx, bob, listingID)
		s.requireCode(err, dErrors.CodeUnauthorized)
		s.Contains(s.activeListings(), listingID)
	})

	returned, err := s.service.Cancel(s.ctx, alice, listingID)
	s.Require().NoError(err)
	s.Equal(cert, returned)
	s.NotContains(s.activeListings(), listingID)

	stored, err := s.service.GetCertificate(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal(cert, stored)

	_, err = s.service.GetListing(s.ctx, listingID)
	s.requireCode(err, dErrors.CodeNotFound)
	s.Equal([]string{"listed", "cancelled"}, s.eventTypes())
}

func (s *ServiceSuite) TestListRules() {
	cert := s.mint(alice, 100, "evt-list")

	s.Run("only the holder may list", func() {
		_, err := s.service.List(s.ctx, bob, cert.ID, 10)
		s.requireCode(err, dErrors.CodeUnauthorized)
		s.Empty(s.activeListings())
	})

	s.Run("unknown certificate", func() {
		_, err := s.service.List(s.ctx, alice, id.NewCertificateID(), 10)
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("escrowed certificate cannot be listed twice", func() {
		_, err := s.service.List(s.ctx, alice, cert.ID, 0)
		s.Require().NoError(err)
		_, err = s.service.List(s.ctx, alice, cert.ID, 0)
		s.requireCode(err, dErrors.CodeInvalidState)
		s.Len(s.activeListings(), 1)
	})
}

func (s *ServiceSuite) TestBuy() {
	cert := s.mint(alice, 5000, "evt-001")
	listingID, err := s.service.List(s.ctx, alice, cert.ID, 1000)
	s.Require().NoError(err)
	s.fund(bob, 1500)
	s.eventTypes()

	s.Run("payment must equal price exactly", func() {
		for _, payment := range []uint64{0, 999, 1001} {
			_, _, err := s.service.Buy(s.ctx, bob, listingID, payment)
			s.requireCode(err, dErrors.CodePriceMismatch)
		}
		s.Contains(s.activeListings(), listingID)
		escrowed, err := s.service.GetCertificate(s.ctx, cert.ID)
		s.Require().NoError(err)
		_, ok := escrowed.Location.Listing()
		s.True(ok)
		s.Equal(uint64(1500), s.balance(bob))
		s.Empty(s.eventTypes())
	})

	s.Run("buyer without funds is rejected without side effects", func() {
		_, _, err := s.service.Buy(s.ctx, carol, listingID, 1000)
		s.requireCode(err, dErrors.CodeInsufficientFunds)
		s.Contains(s.activeListings(), listingID)
		s.Zero(s.balance(alice))
	})

	s.Run("exact payment transfers certificate and funds", func() {
		bought, receipt, err := s.service.Buy(s.ctx, bob, listingID, 1000)
		s.Require().NoError(err)
		s.True(bought.IsHeldBy(bob))
		s.Equal(cert.ID, bought.ID)
		s.Equal(cert.Amount, bought.Amount)
		s.Equal(cert.VerificationID, bought.VerificationID)
		s.Equal(&models.Receipt{
			ListingID:     listingID,
			CertificateID: cert.ID,
			Seller:        alice,
			Buyer:         bob,
			Price:         1000,
			SoldAt:        s.now,
		}, receipt)

		s.Equal(uint64(1000), s.balance(alice))
		s.Equal(uint64(500), s.balance(bob))
		s.NotContains(s.activeListings(), listingID)
		s.Equal([]string{"sold"}, s.eventTypes())
		s.Equal(float64(1000), testutil.ToFloat64(s.metrics.SettledPaymentUnit))
	})

	s.Run("second buy sees the listing gone", func() {
		_, _, err := s.service.Buy(s.ctx, bob, listingID, 1000)
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("cancel after sale is NotFound", func() {
		_, err := s.service.Cancel(s.ctx, alice, listingID)
		s.requireCode(err, dErrors.CodeNotFound)
	})
}

func (s *ServiceSuite) TestFreeListingNeedsNoFunds() {
	cert := s.mint(alice, 10, "evt-free")
	listingID, err := s.service.List(s.ctx, alice, cert.ID, 0)
	s.Require().NoError(err)

	bought, _, err := s.service.Buy(s.ctx, carol, listingID, 0)
	s.Require().NoError(err)
	s.True(bought.IsHeldBy(carol))
	s.Zero(s.balance(alice))
}

func (s *ServiceSuite) TestSellerMayBuyOwnListing() {
	cert := s.mint(alice, 10, "evt-self")
	s.fund(alice, 50)
	listingID, err := s.service.List(s.ctx, alice, cert.ID, 50)
	s.Require().NoError(err)

	bought, _, err := s.service.Buy(s.ctx, alice, listingID, 50)
	s.Require().NoError(err)
	s.True(bought.IsHeldBy(alice))
	s.Equal(uint64(50), s.balance(alice))
}

func (s *ServiceSuite) TestSellerBuysOwnListingWithoutFunds() {
	cert := s.mint(alice, 10, "evt-self-unfunded")
	listingID, err := s.service.List(s.ctx, alice, cert.ID, 1000)
	s.Require().NoError(err)

	bought, receipt, err := s.service.Buy(s.ctx, alice, listingID, 1000)
	s.Require().NoError(err)
	s.True(bought.IsHeldBy(alice))
	s.Equal(uint64(1000), receipt.Price)
	s.Zero(s.balance(alice))
	s.Empty(s.activeListings())
}

func (s *ServiceSuite) TestConcurrentBuyersExactlyOneWins() {
	cert := s.mint(alice, 5000, "evt-race")
	listingID, err := s.service.List(s.ctx, alice, cert.ID, 100)
	s.Require().NoError(err)

	const buyers = 32
	for i := range buyers {
		s.fund(buyerName(i), 100)
	}

	var (
		wg       sync.WaitGroup
		wins     atomic.Int32
		notFound atomic.Int32
		winner   atomic.Value
	)
	start := make(chan struct{})
	for i := range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			buyer := buyerName(i)
			_, _, err := s.service.Buy(s.ctx, buyer, listingID, 100)
			switch {
			case err == nil:
				wins.Add(1)
				winner.Store(buyer)
			case dErrors.HasCode(err, dErrors.CodeNotFound):
				notFound.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(buyers-1), notFound.Load())

	won := winner.Load().(id.PrincipalID)
	final, err := s.service.GetCertificate(s.ctx, cert.ID)
	s.Require().NoError(err)
	s.True(final.IsHeldBy(won))
	s.Equal(uint64(100), s.balance(alice))
	s.Zero(s.balance(won))
	s.Empty(s.activeListings())
}

func buyerName(i int) id.PrincipalID {
	return id.PrincipalID(fmt.Sprintf("buyer-%02d", i))
}

func (s *ServiceSuite) TestRetire() {
	cert := s.mint(alice, 5000, "evt-retire")
	s.eventTypes()

	s.Run("only the holder may retire", func() {
		_, err := s.service.Retire(s.ctx, bob, cert.ID)
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("escrowed certificate must be cancelled first", func() {
		listingID, err := s.service.List(s.ctx, alice, cert.ID, 1)
		s.Require().NoError(err)
		_, err = s.service.Retire(s.ctx, alice, cert.ID)
		s.requireCode(err, dErrors.CodeInvalidState)
		_, err = s.service.Cancel(s.ctx, alice, listingID)
		s.Require().NoError(err)
		s.eventTypes()
	})

	ret, err := s.service.Retire(s.ctx, alice, cert.ID)
	s.Require().NoError(err)
	s.Equal(cert.ID, ret.OriginalCertificateID)
	s.Equal(alice, ret.Retirer)
	s.Equal(cert.Amount, ret.Amount)
	s.Equal(cert.VerificationID, ret.VerificationID)
	s.Equal(s.now, ret.RetiredAt)
	s.False(ret.Frozen)
	s.Equal([]string{"retired", "certificate_issued"}, s.eventTypes())

	s.Run("certificate is destroyed", func() {
		_, err := s.service.GetCertificate(s.ctx, cert.ID)
		s.requireCode(err, dErrors.CodeNotFound)
		_, err = s.service.Retire(s.ctx, alice, cert.ID)
		s.requireCode(err, dErrors.CodeNotFound)
		_, err = s.service.List(s.ctx, alice, cert.ID, 1)
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("exactly one retirement certificate", func() {
		rets, err := s.service.RetirementsByOwner(s.ctx, alice)
		s.Require().NoError(err)
		s.Require().Len(rets, 1)
		s.Equal(ret, rets[0])
	})

	s.Run("verification id stays burned", func() {
		_, err := s.service.Mint(s.ctx, s.cap, alice, 1, 1, cert.VerificationID)
		s.requireCode(err, dErrors.CodeDuplicateVerification)
	})
}

func (s *ServiceSuite) TestFreeze() {
	cert := s.mint(alice, 700, "evt-freeze")
	ret, err := s.service.Retire(s.ctx, alice, cert.ID)
	s.Require().NoError(err)
	s.eventTypes()

	s.Run("only the owner may freeze", func() {
		_, err := s.service.Freeze(s.ctx, bob, ret.ID)
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("unknown retirement", func() {
		_, err := s.service.Freeze(s.ctx, alice, id.NewRetirementID())
		s.requireCode(err, dErrors.CodeNotFound)
	})

	frozen, err := s.service.Freeze(s.ctx, alice, ret.ID)
	s.Require().NoError(err)
	s.True(frozen.Frozen)
	s.Require().NotNil(frozen.FrozenAt)
	s.Equal(s.now, *frozen.FrozenAt)
	s.Equal([]string{"retirement_frozen"}, s.eventTypes())

	_, err = s.service.Freeze(s.ctx, alice, ret.ID)
	s.requireCode(err, dErrors.CodeAlreadyFrozen)

	stored, err := s.service.GetRetirement(s.ctx, ret.ID)
	s.Require().NoError(err)
	s.True(stored.Frozen)
	s.Equal(ret.Amount, stored.Amount)
	s.Equal(alice, stored.Retirer)
}

func (s *ServiceSuite) TestFund() {
	_, err := s.service.Fund(s.ctx, nil, bob, 10)
	s.requireCode(err, dErrors.CodeUnauthorized)

	_, err = s.service.Fund(s.ctx, s.cap, bob, 0)
	s.requireCode(err, dErrors.CodeInvalidAmount)

	bal, err := s.service.Fund(s.ctx, s.cap, bob, ^uint64(0))
	s.Require().NoError(err)
	s.Equal(^uint64(0), bal)

	_, err = s.service.Fund(s.ctx, s.cap, bob, 1)
	s.requireCode(err, dErrors.CodeInvalidAmount)
	s.Equal(^uint64(0), s.balance(bob))
}

func (s *ServiceSuite) TestEventPayloads() {
	cert := s.mint(alice, 5000, "evt-001")
	listingID, err := s.service.List(s.ctx, alice, cert.ID, 1000)
	s.Require().NoError(err)

	entries, err := s.ledger.FetchUnpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)

	var minted models.Minted
	s.Require().NoError(json.Unmarshal(entries[0].Payload, &minted))
	s.Equal(models.Minted{
		CertificateID:  cert.ID,
		Recipient:      alice,
		Amount:         5000,
		ActivityCode:   1,
		VerificationID: "evt-001",
	}, minted)
	s.Equal(cert.ID.String(), entries[0].AggregateID)

	var listed models.Listed
	s.Require().NoError(json.Unmarshal(entries[1].Payload, &listed))
	s.Equal(models.Listed{ListingID: listingID, CertificateID: cert.ID, Seller: alice, Price: 1000}, listed)
}

func (s *ServiceSuite) TestRetirementEventsShareCertificateKey() {
	cert := s.mint(alice, 300, "evt-key")
	ret, err := s.service.Retire(s.ctx, alice, cert.ID)
	s.Require().NoError(err)
	_, err = s.service.Freeze(s.ctx, alice, ret.ID)
	s.Require().NoError(err)

	entries, err := s.ledger.FetchUnpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 4)
	for _, e := range entries {
		s.Equal(cert.ID.String(), e.AggregateID, e.EventType)
	}

	var issued models.CertificateIssued
	s.Require().NoError(json.Unmarshal(entries[2].Payload, &issued))
	s.Equal(ret.ID, issued.RetirementID)
	s.Equal(cert.ID, issued.CertificateID)
}

func (s *ServiceSuite) TestCancelledContextAbortsBeforeAnyChange() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.service.Mint(ctx, s.cap, alice, 10, 1, "evt-ctx")
	s.requireCode(err, dErrors.CodeTimeout)

	s.mint(alice, 10, "evt-ctx")
}

func (s *ServiceSuite) TestMetrics() {
	cert := s.mint(alice, 300, "evt-metrics")
	_, err := s.service.Mint(s.ctx, s.cap, alice, 300, 1, "evt-metrics")
	s.Require().Error(err)
	_, err = s.service.List(s.ctx, alice, cert.ID, 1)
	s.Require().NoError(err)

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.OperationsTotal.WithLabelValues("mint", metrics.OutcomeOK)))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.OperationsTotal.WithLabelValues("mint", metrics.OutcomeRejected)))
	s.Equal(float64(300), testutil.ToFloat64(s.metrics.GramsMinted))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ActiveListings))
}
