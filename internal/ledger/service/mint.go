package service

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"offsetledger/internal/ledger/credential"
	"offsetledger/internal/ledger/models"
	"offsetledger/internal/ledger/store"
	id "offsetledger/pkg/domain"
	dErrors "offsetledger/pkg/domain-errors"
	"offsetledger/pkg/platform/sentinel"
	"offsetledger/pkg/requestcontext"
)

// Mint issues a certificate for a verified event. The verification id is
// registered and the certificate created in one transaction.
func (s *Service) Mint(ctx context.Context, capability *credential.MintCapability, recipient id.PrincipalID, amount uint64, activityCode uint8, verificationID id.VerificationID) (cert *models.Certificate, err error) {
	ctx, done := s.observe(ctx, "mint", attribute.String("verification_id", verificationID.String()))
	defer func() { done(err) }()

	if err := s.authority.Verify(capability); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidAmount, "amount must be greater than zero")
	}
	if recipient.IsZero() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "recipient is required")
	}
	if verificationID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "verification_id is required")
	}

	cert, err = models.NewCertificate(id.NewCertificateID(), recipient, amount, activityCode, verificationID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.ledger.RunInTx(ctx, func(ctx context.Context, st store.Stores) error {
		if err := st.Verifications.Register(ctx, verificationID, cert.ID); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeDuplicateVerification, "verification id already used")
			}
			return err
		}
		if err := st.Certificates.Create(ctx, cert); err != nil {
			return err
		}
		return emit(ctx, st.Outbox, cert.IssuedAt, models.Minted{
			CertificateID:  cert.ID,
			Recipient:      recipient,
			Amount:         cert.Amount,
			ActivityCode:   cert.ActivityCode,
			VerificationID: cert.VerificationID,
		})
	})
	if err != nil {
		return nil, finalize(err)
	}
	if s.metrics != nil {
		s.metrics.Minted(cert.Amount)
	}
	return cert, nil
}

// Fund credits principal with payment units. It stands in for a bridge from an
// external fungible token and is gated by the mint capability.
func (s *Service) Fund(ctx context.Context, capability *credential.MintCapability, principal id.PrincipalID, amount uint64) (balance uint64, err error) {
	ctx, done := s.observe(ctx, "fund")
	defer func() { done(err) }()

	if err := s.authority.Verify(capability); err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidAmount, "amount must be greater than zero")
	}
	if principal.IsZero() {
		return 0, dErrors.New(dErrors.CodeBadRequest, "principal is required")
	}

	now := requestcontext.Now(ctx)
	err = s.ledger.RunInTx(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		balance, err = st.Balances.Credit(ctx, principal, amount)
		if err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeInvalidAmount, "balance would overflow")
			}
			return err
		}
		return emit(ctx, st.Outbox, now, models.Funded{Principal: principal, Amount: amount, Balance: balance})
	})
	if err != nil {
		return 0, finalize(err)
	}
	return balance, nil
}

// Balance reports principal's payment balance. Unknown principals have zero.
func (s *Service) Balance(ctx context.Context, principal id.PrincipalID) (balance uint64, err error) {
	ctx, done := s.observe(ctx, "balance")
	defer func() { done(err) }()

	err = s.ledger.View(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		balance, err = st.Balances.Get(ctx, principal)
		return err
	})
	return balance, finalize(err)
}
