// Package memory is the single-process ledger backend.
//
// One writer at a time holds the ledger lock for a whole transaction. Every
// mutation records its inverse in a journal; if the transaction function
// fails the journal is replayed backwards, restoring the exact prior state.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"offsetledger/internal/ledger/models"
	"offsetledger/internal/ledger/store"
	"offsetledger/internal/outbox"
	id "offsetledger/pkg/domain"
	dErrors "offsetledger/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

var errReadOnly = errors.New("write attempted in read-only view")

// Ledger holds all ledger state in maps guarded by one RWMutex.
type Ledger struct {
	mu      sync.RWMutex
	timeout time.Duration

	certificates  map[id.CertificateID]models.Certificate
	verifications map[id.VerificationID]id.CertificateID
	listings      map[id.ListingID]models.Listing
	// listingOrder is the enumerable collection; listingPos indexes into it so
	// removal is a swap with the last element.
	listingOrder []id.ListingID
	listingPos   map[id.ListingID]int
	retirements  map[id.RetirementID]models.RetirementCertificate
	balances     map[id.PrincipalID]uint64
	outbox       []outbox.Entry

	// journal is only touched while mu is write-locked.
	journal []func()
}

type Option func(*Ledger)

// WithTxTimeout bounds how long a transaction may run when ctx has no deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		timeout:       defaultTxTimeout,
		certificates:  make(map[id.CertificateID]models.Certificate),
		verifications: make(map[id.VerificationID]id.CertificateID),
		listings:      make(map[id.ListingID]models.Listing),
		listingPos:    make(map[id.ListingID]int),
		retirements:   make(map[id.RetirementID]models.RetirementCertificate),
		balances:      make(map[id.PrincipalID]uint64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ store.Ledger = (*Ledger)(nil)
var _ outbox.Source = (*Ledger)(nil)

func (l *Ledger) RunInTx(ctx context.Context, fn func(ctx context.Context, s store.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	l.journal = l.journal[:0]
	err := l.run(ctx, fn, true)
	if err == nil {
		err = ctx.Err()
		if err != nil {
			err = dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
		}
	}
	if err != nil {
		l.rollback()
	}
	l.journal = l.journal[:0]
	return err
}

func (l *Ledger) View(ctx context.Context, fn func(ctx context.Context, s store.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "view aborted: context cancelled")
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.run(ctx, fn, false)
}

// run calls fn and converts a panic into a rollback before re-panicking.
func (l *Ledger) run(ctx context.Context, fn func(ctx context.Context, s store.Stores) error, writable bool) (err error) {
	if writable {
		defer func() {
			if r := recover(); r != nil {
				l.rollback()
				l.journal = l.journal[:0]
				panic(r)
			}
		}()
	}
	v := &view{l: l, writable: writable}
	return fn(ctx, store.Stores{
		Certificates:  (*certificateStore)(v),
		Verifications: (*verificationStore)(v),
		Listings:      (*listingStore)(v),
		Retirements:   (*retirementStore)(v),
		Balances:      (*balanceStore)(v),
		Outbox:        (*outboxStore)(v),
	})
}

func (l *Ledger) rollback() {
	for i := len(l.journal) - 1; i >= 0; i-- {
		l.journal[i]()
	}
}

// view binds the stores to one transaction or read snapshot.
type view struct {
	l        *Ledger
	writable bool
}

func (v *view) record(undo func()) error {
	if !v.writable {
		return errReadOnly
	}
	v.l.journal = append(v.l.journal, undo)
	return nil
}

// FetchUnpublished returns the oldest unpublished entries in append order.
func (l *Ledger) FetchUnpublished(ctx context.Context, limit int) ([]outbox.Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []outbox.Entry
	for _, e := range l.outbox {
		if e.PublishedAt != nil {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (l *Ledger) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, i := range ids {
		want[i] = struct{}{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.outbox {
		if _, ok := want[l.outbox[i].ID]; ok && l.outbox[i].PublishedAt == nil {
			published := at
			l.outbox[i].PublishedAt = &published
		}
	}
	return nil
}

func (l *Ledger) PurgePublished(ctx context.Context, before time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.outbox[:0]
	purged := 0
	for _, e := range l.outbox {
		if e.PublishedAt != nil && e.PublishedAt.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	clear(l.outbox[len(kept):])
	l.outbox = kept
	return purged, nil
}
