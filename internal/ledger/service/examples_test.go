package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offsetledger/internal/ledger/credential"
	"offsetledger/internal/ledger/store/memory"
	dErrors "offsetledger/pkg/domain-errors"
	"offsetledger/pkg/testutil"
)

func newMarket(t *testing.T) (*Service, *credential.MintCapability) {
	t.Helper()
	authority, err := credential.Bootstrap("minter", nil)
	require.NoError(t, err)
	return New(memory.New(), authority), authority.Capability()
}

func TestAliceSellsToBob(t *testing.T) {
	ctx := context.Background()
	svc, capability := newMarket(t)

	testutil.Given(t, "alice holds a 5000g certificate and bob holds 1000 units", func(t *testing.T) {
		cert, err := svc.Mint(ctx, capability, alice, 5000, 1, "evt-001")
		require.NoError(t, err)
		assert.Equal(t, uint64(5000), cert.Amount)
		_, err = svc.Fund(ctx, capability, bob, 1000)
		require.NoError(t, err)

		testutil.When(t, "alice lists it for 1000 and bob pays 1000", func(t *testing.T) {
			listingID, err := svc.List(ctx, alice, cert.ID, 1000)
			require.NoError(t, err)
			_, _, err = svc.Buy(ctx, bob, listingID, 1000)
			require.NoError(t, err)

			testutil.Then(t, "bob owns it, alice is paid and the listing is gone", func(t *testing.T) {
				owned, err := svc.GetCertificate(ctx, cert.ID)
				require.NoError(t, err)
				assert.True(t, owned.IsHeldBy(bob))

				aliceBalance, err := svc.Balance(ctx, alice)
				require.NoError(t, err)
				assert.Equal(t, uint64(1000), aliceBalance)

				active, err := svc.ActiveListings(ctx)
				require.NoError(t, err)
				assert.NotContains(t, active, listingID)
			})
		})
	})
}

func TestOnlySellerCancels(t *testing.T) {
	ctx := context.Background()
	svc, capability := newMarket(t)

	testutil.Given(t, "alice lists certificate X for 1000", func(t *testing.T) {
		cert, err := svc.Mint(ctx, capability, alice, 5000, 1, "evt-x")
		require.NoError(t, err)
		listingID, err := svc.List(ctx, alice, cert.ID, 1000)
		require.NoError(t, err)

		testutil.When(t, "bob tries to cancel first", func(t *testing.T) {
			_, err := svc.Cancel(ctx, bob, listingID)

			testutil.Then(t, "bob is unauthorized", func(t *testing.T) {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
			})
		})

		testutil.When(t, "alice cancels", func(t *testing.T) {
			returned, err := svc.Cancel(ctx, alice, listingID)
			require.NoError(t, err)

			testutil.Then(t, "certificate X is back with alice", func(t *testing.T) {
				assert.True(t, returned.IsHeldBy(alice))
				assert.Equal(t, cert.ID, returned.ID)

				active, err := svc.ActiveListings(ctx)
				require.NoError(t, err)
				assert.Empty(t, active)
			})
		})
	})
}
