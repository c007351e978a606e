//go:build integration

package service_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"offsetledger/internal/ledger/credential"
	"offsetledger/internal/ledger/service"
	"offsetledger/internal/ledger/store/postgres"
	id "offsetledger/pkg/domain"
	dErrors "offsetledger/pkg/domain-errors"
	"offsetledger/pkg/testutil/containers"
)

type PostgresServiceSuite struct {
	suite.Suite
	pg         *containers.PostgresContainer
	service    *service.Service
	capability *credential.MintCapability
	ctx        context.Context
}

func TestPostgresServiceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresServiceSuite))
}

func (s *PostgresServiceSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.GetManager().GetPostgres(s.T())
	ledger := postgres.New(s.pg.DB)
	s.Require().NoError(ledger.Migrate(s.ctx))

	authority, err := credential.Bootstrap("minter", nil)
	s.Require().NoError(err)
	s.capability = authority.Capability()
	s.service = service.New(ledger, authority)
}

func (s *PostgresServiceSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx,
		"listings", "certificates", "retirements", "verifications", "balances", "ledger_outbox"))
}

// TestConcurrentBuyersExactlyOneWins races buyers on one listing through real
// row locks: one commit, every loser sees NotFound, money is conserved.
func (s *PostgresServiceSuite) TestConcurrentBuyersExactlyOneWins() {
	cert, err := s.service.Mint(s.ctx, s.capability, "alice", 5000, 1, "evt-pg-race")
	s.Require().NoError(err)
	listingID, err := s.service.List(s.ctx, "alice", cert.ID, 100)
	s.Require().NoError(err)

	const buyers = 16
	for i := range buyers {
		_, err := s.service.Fund(s.ctx, s.capability, buyer(i), 100)
		s.Require().NoError(err)
	}

	var (
		wg       sync.WaitGroup
		wins     atomic.Int32
		notFound atomic.Int32
	)
	start := make(chan struct{})
	for i := range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _, err := s.service.Buy(s.ctx, buyer(i), listingID, 100)
			switch {
			case err == nil:
				wins.Add(1)
			case dErrors.HasCode(err, dErrors.CodeNotFound):
				notFound.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(buyers-1), notFound.Load())

	sellerBalance, err := s.service.Balance(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(uint64(100), sellerBalance)

	var total uint64
	for i := range buyers {
		bal, err := s.service.Balance(s.ctx, buyer(i))
		s.Require().NoError(err)
		total += bal
	}
	s.Equal(uint64(100*(buyers-1)), total)
}

// TestCrossedBuysBothSettle has alice and bob buy each other's listings at the
// same time, repeatedly. Both balances are touched by both transactions.
func (s *PostgresServiceSuite) TestCrossedBuysBothSettle() {
	const rounds = 20
	for _, p := range []id.PrincipalID{"alice", "bob"} {
		_, err := s.service.Fund(s.ctx, s.capability, p, 10*rounds)
		s.Require().NoError(err)
	}

	for i := range rounds {
		aliceCert, err := s.service.Mint(s.ctx, s.capability, "alice", 1, 1, id.VerificationID(fmt.Sprintf("evt-cross-a-%d", i)))
		s.Require().NoError(err)
		bobCert, err := s.service.Mint(s.ctx, s.capability, "bob", 1, 1, id.VerificationID(fmt.Sprintf("evt-cross-b-%d", i)))
		s.Require().NoError(err)
		aliceListing, err := s.service.List(s.ctx, "alice", aliceCert.ID, 10)
		s.Require().NoError(err)
		bobListing, err := s.service.List(s.ctx, "bob", bobCert.ID, 10)
		s.Require().NoError(err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, _, errs[0] = s.service.Buy(s.ctx, "alice", bobListing, 10)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, _, errs[1] = s.service.Buy(s.ctx, "bob", aliceListing, 10)
		}()
		close(start)
		wg.Wait()
		s.Require().NoError(errs[0], "round %d", i)
		s.Require().NoError(errs[1], "round %d", i)
	}

	for _, p := range []id.PrincipalID{"alice", "bob"} {
		bal, err := s.service.Balance(s.ctx, p)
		s.Require().NoError(err)
		s.Equal(uint64(10*rounds), bal)
	}
}

func (s *PostgresServiceSuite) TestConcurrentMintsOfOneVerificationID() {
	const minters = 16
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
		dups atomic.Int32
	)
	for range minters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.Mint(s.ctx, s.capability, "alice", 1, 1, "evt-pg-once")
			switch {
			case err == nil:
				wins.Add(1)
			case dErrors.HasCode(err, dErrors.CodeDuplicateVerification):
				dups.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(minters-1), dups.Load())
	certs, err := s.service.CertificatesByOwner(s.ctx, "alice")
	s.Require().NoError(err)
	s.Len(certs, 1)
}

func (s *PostgresServiceSuite) TestRetireAndFreeze() {
	cert, err := s.service.Mint(s.ctx, s.capability, "alice", 250, 3, "evt-pg-retire")
	s.Require().NoError(err)

	ret, err := s.service.Retire(s.ctx, "alice", cert.ID)
	s.Require().NoError(err)
	s.Equal(cert.Amount, ret.Amount)

	_, err = s.service.GetCertificate(s.ctx, cert.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.Freeze(s.ctx, "alice", ret.ID)
	s.Require().NoError(err)
	_, err = s.service.Freeze(s.ctx, "alice", ret.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadyFrozen))
}

func buyer(i int) id.PrincipalID {
	return id.PrincipalID(fmt.Sprintf("buyer-%02d", i))
}
