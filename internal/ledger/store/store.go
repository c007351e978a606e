// Package store defines the persistence contract for the ledger. Backends live
// in subpackages: memory (single process, tests) and postgres.
//
// Every mutation happens inside Ledger.RunInTx. When fn returns an error the
// backend discards every change fn made, including outbox entries, so a
// rejected operation is never half-applied.
package store

import (
	"context"

	"offsetledger/internal/ledger/models"
	"offsetledger/internal/outbox"
	id "offsetledger/pkg/domain"
)

// Certificates persists live certificates. Retired certificates are deleted.
type Certificates interface {
	Create(ctx context.Context, cert *models.Certificate) error
	// FindByID locks the row for the rest of the transaction where the backend
	// supports row locks.
	FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error)
	UpdateLocation(ctx context.Context, cert *models.Certificate) error
	Delete(ctx context.Context, certID id.CertificateID) error
	ListByOwner(ctx context.Context, owner id.PrincipalID) ([]*models.Certificate, error)
}

// Verifications is the write-once verification registry.
type Verifications interface {
	// Register returns sentinel.ErrAlreadyUsed if verificationID was ever registered.
	Register(ctx context.Context, verificationID id.VerificationID, certID id.CertificateID) error
	Lookup(ctx context.Context, verificationID id.VerificationID) (id.CertificateID, error)
}

// Listings is the listing index plus its enumerable collection.
type Listings interface {
	Create(ctx context.Context, listing *models.Listing) error
	// FindByID locks the row for the rest of the transaction where supported.
	FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error)
	Delete(ctx context.Context, listingID id.ListingID) error
	ActiveIDs(ctx context.Context) ([]id.ListingID, error)
}

// Retirements persists retirement certificates. They are never deleted.
type Retirements interface {
	Create(ctx context.Context, ret *models.RetirementCertificate) error
	FindByID(ctx context.Context, retirementID id.RetirementID) (*models.RetirementCertificate, error)
	Update(ctx context.Context, ret *models.RetirementCertificate) error
	ListByOwner(ctx context.Context, owner id.PrincipalID) ([]*models.RetirementCertificate, error)
}

// Balances holds the payment medium. A missing principal has balance zero.
type Balances interface {
	Get(ctx context.Context, owner id.PrincipalID) (uint64, error)
	// Credit returns the new balance.
	Credit(ctx context.Context, owner id.PrincipalID, amount uint64) (uint64, error)
	// Debit returns sentinel.ErrInsufficient when the balance is below amount.
	Debit(ctx context.Context, owner id.PrincipalID, amount uint64) (uint64, error)
	// Lock holds the balances of owners until the transaction ends. Rows are
	// taken in a fixed order, so two transfers between the same principals
	// never wait on each other in a cycle.
	Lock(ctx context.Context, owners ...id.PrincipalID) error
}

// Stores is the set of stores bound to one transaction.
type Stores struct {
	Certificates  Certificates
	Verifications Verifications
	Listings      Listings
	Retirements   Retirements
	Balances      Balances
	Outbox        outbox.Writer
}

// Ledger is the transactional boundary.
type Ledger interface {
	// RunInTx runs fn atomically. The ctx passed to fn carries the transaction
	// and must be used for store calls.
	RunInTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
