package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"offsetledger/internal/ledger/models"
	"offsetledger/internal/ledger/store"
	id "offsetledger/pkg/domain"
	dErrors "offsetledger/pkg/domain-errors"
	"offsetledger/pkg/requestcontext"
)

// Retire consumes caller's certificate and issues the retirement certificate
// that replaces it. The certificate id is dead afterwards.
func (s *Service) Retire(ctx context.Context, caller id.PrincipalID, certID id.CertificateID) (ret *models.RetirementCertificate, err error) {
	ctx, done := s.observe(ctx, "retire", attribute.String("certificate_id", certID.String()))
	defer func() { done(err) }()

	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller required")
	}

	now := requestcontext.Now(ctx)
	err = s.ledger.RunInTx(ctx, func(ctx context.Context, st store.Stores) error {
		cert, err := st.Certificates.FindByID(ctx, certID)
		if err != nil {
			return notFound(err, "certificate not found")
		}
		if err := cert.CanRetire(caller); err != nil {
			return err
		}
		ret = models.NewRetirementCertificate(id.NewRetirementID(), cert, caller, now)
		if err := st.Certificates.Delete(ctx, cert.ID); err != nil {
			return err
		}
		if err := st.Retirements.Create(ctx, ret); err != nil {
			return err
		}
		return emit(ctx, st.Outbox, now,
			models.Retired{
				CertificateID:  cert.ID,
				Retirer:        caller,
				Amount:         cert.Amount,
				VerificationID: cert.VerificationID,
			},
			models.CertificateIssued{
				RetirementID:   ret.ID,
				CertificateID:  ret.OriginalCertificateID,
				Retirer:        caller,
				Amount:         ret.Amount,
				VerificationID: ret.VerificationID,
				RetiredAt:      ret.RetiredAt,
			},
		)
	})
	if err != nil {
		return nil, finalize(err)
	}
	if s.metrics != nil {
		s.metrics.Retired(ret.Amount)
	}
	return ret, nil
}

// Freeze makes caller's retirement certificate permanently immutable.
func (s *Service) Freeze(ctx context.Context, caller id.PrincipalID, retirementID id.RetirementID) (ret *models.RetirementCertificate, err error) {
	ctx, done := s.observe(ctx, "freeze", attribute.String("retirement_id", retirementID.String()))
	defer func() { done(err) }()

	if caller.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller required")
	}

	now := requestcontext.Now(ctx)
	err = s.ledger.RunInTx(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		ret, err = st.Retirements.FindByID(ctx, retirementID)
		if err != nil {
			return notFound(err, "retirement certificate not found")
		}
		if err := ret.CanFreeze(caller); err != nil {
			return err
		}
		ret.ApplyFreeze(now)
		if err := st.Retirements.Update(ctx, ret); err != nil {
			return err
		}
		return emit(ctx, st.Outbox, now, models.RetirementFrozen{
			RetirementID:  ret.ID,
			CertificateID: ret.OriginalCertificateID,
			Owner:         caller,
			FrozenAt:      now,
		})
	})
	if err != nil {
		return nil, finalize(err)
	}
	return ret, nil
}

func (s *Service) GetCertificate(ctx context.Context, certID id.CertificateID) (cert *models.Certificate, err error) {
	ctx, done := s.observe(ctx, "get_certificate")
	defer func() { done(err) }()

	err = s.ledger.View(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		cert, err = st.Certificates.FindByID(ctx, certID)
		return notFound(err, "certificate not found")
	})
	if err != nil {
		return nil, finalize(err)
	}
	return cert, nil
}

func (s *Service) GetRetirement(ctx context.Context, retirementID id.RetirementID) (ret *models.RetirementCertificate, err error) {
	ctx, done := s.observe(ctx, "get_retirement")
	defer func() { done(err) }()

	err = s.ledger.View(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		ret, err = st.Retirements.FindByID(ctx, retirementID)
		return notFound(err, "retirement certificate not found")
	})
	if err != nil {
		return nil, finalize(err)
	}
	return ret, nil
}

// CertificatesByOwner lists certificates owner holds in free circulation.
// Escrowed certificates belong to their listing until bought or cancelled.
func (s *Service) CertificatesByOwner(ctx context.Context, owner id.PrincipalID) (certs []*models.Certificate, err error) {
	ctx, done := s.observe(ctx, "certificates_by_owner")
	defer func() { done(err) }()

	err = s.ledger.View(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		certs, err = st.Certificates.ListByOwner(ctx, owner)
		return err
	})
	if err != nil {
		return nil, finalize(err)
	}
	return certs, nil
}

func (s *Service) RetirementsByOwner(ctx context.Context, owner id.PrincipalID) (rets []*models.RetirementCertificate, err error) {
	ctx, done := s.observe(ctx, "retirements_by_owner")
	defer func() { done(err) }()

	err = s.ledger.View(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		rets, err = st.Retirements.ListByOwner(ctx, owner)
		return err
	})
	if err != nil {
		return nil, finalize(err)
	}
	return rets, nil
}
