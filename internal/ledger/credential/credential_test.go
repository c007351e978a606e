package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	dErrors "offsetledger/pkg/domain-errors"
)

func TestAuthorityIssuesSingleCapability(t *testing.T) {
	auth, err := Bootstrap("minter", nil)
	require.NoError(t, err)

	first := auth.Capability()
	second := auth.Capability()
	assert.Same(t, first, second)
	assert.Equal(t, "minter", first.Holder().String())
	assert.NoError(t, auth.Verify(first))
}

func TestVerifyRejectsForeignCapabilities(t *testing.T) {
	auth, err := Bootstrap("minter", nil)
	require.NoError(t, err)
	other, err := Bootstrap("minter", nil)
	require.NoError(t, err)

	t.Run("nil capability", func(t *testing.T) {
		assert.True(t, dErrors.HasCode(auth.Verify(nil), dErrors.CodeUnauthorized))
	})

	t.Run("capability from another authority", func(t *testing.T) {
		assert.True(t, dErrors.HasCode(auth.Verify(other.Capability()), dErrors.CodeUnauthorized))
	})

	t.Run("hand-built capability", func(t *testing.T) {
		forged := &MintCapability{holder: "minter", authority: auth}
		assert.True(t, dErrors.HasCode(auth.Verify(forged), dErrors.CodeUnauthorized))
	})
}

func TestRedeem(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	auth, err := Bootstrap("minter", hash)
	require.NoError(t, err)

	capability, err := auth.Redeem("s3cret")
	require.NoError(t, err)
	assert.Same(t, auth.Capability(), capability)

	_, err = auth.Redeem("wrong")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = auth.Redeem("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestRedeemDisabledWithoutHash(t *testing.T) {
	auth, err := Bootstrap("minter", nil)
	require.NoError(t, err)
	_, err = auth.Redeem("anything")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestBootstrapValidation(t *testing.T) {
	_, err := Bootstrap("", nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = Bootstrap("minter", []byte("plaintext"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
