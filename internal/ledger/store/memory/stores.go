package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"offsetledger/internal/ledger/models"
	"offsetledger/internal/outbox"
	id "offsetledger/pkg/domain"
	"offsetledger/pkg/platform/sentinel"
)

// Stores hand out copies so a caller mutating a returned pointer never changes
// ledger state without going through an Update call.

type certificateStore view

func (s *certificateStore) Create(ctx context.Context, cert *models.Certificate) error {
	v := (*view)(s)
	if _, exists := v.l.certificates[cert.ID]; exists {
		return fmt.Errorf("certificate %s: %w", cert.ID, sentinel.ErrConflict)
	}
	if err := v.record(func() { delete(v.l.certificates, cert.ID) }); err != nil {
		return err
	}
	v.l.certificates[cert.ID] = *cert
	return nil
}

func (s *certificateStore) FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	cert, ok := s.l.certificates[certID]
	if !ok {
		return nil, fmt.Errorf("certificate %s: %w", certID, sentinel.ErrNotFound)
	}
	return &cert, nil
}

func (s *certificateStore) UpdateLocation(ctx context.Context, cert *models.Certificate) error {
	v := (*view)(s)
	prev, ok := v.l.certificates[cert.ID]
	if !ok {
		return fmt.Errorf("certificate %s: %w", cert.ID, sentinel.ErrNotFound)
	}
	if err := v.record(func() { v.l.certificates[cert.ID] = prev }); err != nil {
		return err
	}
	updated := prev
	updated.Location = cert.Location
	v.l.certificates[cert.ID] = updated
	return nil
}

func (s *certificateStore) Delete(ctx context.Context, certID id.CertificateID) error {
	v := (*view)(s)
	prev, ok := v.l.certificates[certID]
	if !ok {
		return fmt.Errorf("certificate %s: %w", certID, sentinel.ErrNotFound)
	}
	if err := v.record(func() { v.l.certificates[certID] = prev }); err != nil {
		return err
	}
	delete(v.l.certificates, certID)
	return nil
}

func (s *certificateStore) ListByOwner(ctx context.Context, owner id.PrincipalID) ([]*models.Certificate, error) {
	var out []*models.Certificate
	for _, cert := range s.l.certificates {
		if cert.IsHeldBy(owner) {
			c := cert
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *models.Certificate) int {
		if c := a.IssuedAt.Compare(b.IssuedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

type verificationStore view

func (s *verificationStore) Register(ctx context.Context, verificationID id.VerificationID, certID id.CertificateID) error {
	v := (*view)(s)
	if _, used := v.l.verifications[verificationID]; used {
		return fmt.Errorf("verification id: %w", sentinel.ErrAlreadyUsed)
	}
	if err := v.record(func() { delete(v.l.verifications, verificationID) }); err != nil {
		return err
	}
	v.l.verifications[verificationID] = certID
	return nil
}

func (s *verificationStore) Lookup(ctx context.Context, verificationID id.VerificationID) (id.CertificateID, error) {
	certID, ok := s.l.verifications[verificationID]
	if !ok {
		return id.CertificateID{}, fmt.Errorf("verification id: %w", sentinel.ErrNotFound)
	}
	return certID, nil
}

type listingStore view

func (s *listingStore) Create(ctx context.Context, listing *models.Listing) error {
	v := (*view)(s)
	if _, exists := v.l.listings[listing.ID]; exists {
		return fmt.Errorf("listing %s: %w", listing.ID, sentinel.ErrConflict)
	}
	if err := v.record(func() { v.l.removeListing(listing.ID) }); err != nil {
		return err
	}
	v.l.listings[listing.ID] = *listing
	v.l.listingPos[listing.ID] = len(v.l.listingOrder)
	v.l.listingOrder = append(v.l.listingOrder, listing.ID)
	return nil
}

func (s *listingStore) FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	listing, ok := s.l.listings[listingID]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", listingID, sentinel.ErrNotFound)
	}
	return &listing, nil
}

func (s *listingStore) Delete(ctx context.Context, listingID id.ListingID) error {
	v := (*view)(s)
	prev, ok := v.l.listings[listingID]
	if !ok {
		return fmt.Errorf("listing %s: %w", listingID, sentinel.ErrNotFound)
	}
	pos := v.l.listingPos[listingID]
	if err := v.record(func() { v.l.restoreListing(prev, pos) }); err != nil {
		return err
	}
	v.l.removeListing(listingID)
	return nil
}

func (s *listingStore) ActiveIDs(ctx context.Context) ([]id.ListingID, error) {
	return slices.Clone(s.l.listingOrder), nil
}

// removeListing drops the index entry and swap-removes from the collection.
func (l *Ledger) removeListing(listingID id.ListingID) {
	pos, ok := l.listingPos[listingID]
	if !ok {
		return
	}
	last := len(l.listingOrder) - 1
	if pos != last {
		moved := l.listingOrder[last]
		l.listingOrder[pos] = moved
		l.listingPos[moved] = pos
	}
	l.listingOrder = l.listingOrder[:last]
	delete(l.listingPos, listingID)
	delete(l.listings, listingID)
}

// restoreListing is the exact inverse of removeListing for a listing that sat
// at pos: the element swapped into pos goes back to the end.
func (l *Ledger) restoreListing(listing models.Listing, pos int) {
	l.listings[listing.ID] = listing
	if pos == len(l.listingOrder) {
		l.listingOrder = append(l.listingOrder, listing.ID)
	} else {
		displaced := l.listingOrder[pos]
		l.listingOrder = append(l.listingOrder, displaced)
		l.listingPos[displaced] = len(l.listingOrder) - 1
		l.listingOrder[pos] = listing.ID
	}
	l.listingPos[listing.ID] = pos
}

type retirementStore view

func (s *retirementStore) Create(ctx context.Context, ret *models.RetirementCertificate) error {
	v := (*view)(s)
	if _, exists := v.l.retirements[ret.ID]; exists {
		return fmt.Errorf("retirement %s: %w", ret.ID, sentinel.ErrConflict)
	}
	if err := v.record(func() { delete(v.l.retirements, ret.ID) }); err != nil {
		return err
	}
	v.l.retirements[ret.ID] = *ret
	return nil
}

func (s *retirementStore) FindByID(ctx context.Context, retirementID id.RetirementID) (*models.RetirementCertificate, error) {
	ret, ok := s.l.retirements[retirementID]
	if !ok {
		return nil, fmt.Errorf("retirement %s: %w", retirementID, sentinel.ErrNotFound)
	}
	return &ret, nil
}

func (s *retirementStore) Update(ctx context.Context, ret *models.RetirementCertificate) error {
	v := (*view)(s)
	prev, ok := v.l.retirements[ret.ID]
	if !ok {
		return fmt.Errorf("retirement %s: %w", ret.ID, sentinel.ErrNotFound)
	}
	if err := v.record(func() { v.l.retirements[ret.ID] = prev }); err != nil {
		return err
	}
	v.l.retirements[ret.ID] = *ret
	return nil
}

func (s *retirementStore) ListByOwner(ctx context.Context, owner id.PrincipalID) ([]*models.RetirementCertificate, error) {
	var out []*models.RetirementCertificate
	for _, ret := range s.l.retirements {
		if ret.Retirer == owner {
			r := ret
			out = append(out, &r)
		}
	}
	slices.SortFunc(out, func(a, b *models.RetirementCertificate) int {
		if c := a.RetiredAt.Compare(b.RetiredAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

type balanceStore view

func (s *balanceStore) Get(ctx context.Context, owner id.PrincipalID) (uint64, error) {
	return s.l.balances[owner], nil
}

func (s *balanceStore) Credit(ctx context.Context, owner id.PrincipalID, amount uint64) (uint64, error) {
	v := (*view)(s)
	prev, had := v.l.balances[owner]
	if amount > math.MaxUint64-prev {
		return prev, fmt.Errorf("credit %s: %w", owner, sentinel.ErrInvalidState)
	}
	if err := v.record(func() { v.l.restoreBalance(owner, prev, had) }); err != nil {
		return prev, err
	}
	v.l.balances[owner] = prev + amount
	return prev + amount, nil
}

func (s *balanceStore) Debit(ctx context.Context, owner id.PrincipalID, amount uint64) (uint64, error) {
	v := (*view)(s)
	prev, had := v.l.balances[owner]
	if amount > prev {
		return prev, fmt.Errorf("debit %s: %w", owner, sentinel.ErrInsufficient)
	}
	if err := v.record(func() { v.l.restoreBalance(owner, prev, had) }); err != nil {
		return prev, err
	}
	v.l.balances[owner] = prev - amount
	return prev - amount, nil
}

// Lock is a no-op: the ledger already admits one writer at a time.
func (s *balanceStore) Lock(context.Context, ...id.PrincipalID) error {
	return nil
}

func (l *Ledger) restoreBalance(owner id.PrincipalID, prev uint64, had bool) {
	if had {
		l.balances[owner] = prev
		return
	}
	delete(l.balances, owner)
}

type outboxStore view

func (s *outboxStore) Append(ctx context.Context, entries ...outbox.Entry) error {
	v := (*view)(s)
	n := len(v.l.outbox)
	if err := v.record(func() {
		clear(v.l.outbox[n:])
		v.l.outbox = v.l.outbox[:n]
	}); err != nil {
		return err
	}
	v.l.outbox = append(v.l.outbox, entries...)
	return nil
}
