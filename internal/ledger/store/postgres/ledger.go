// Package postgres is the PostgreSQL ledger backend.
//
// Each RunInTx is one database transaction. Stores read their executor from
// the context (pkg/platform/tx) so every statement joins it. Listings and
// certificates are read with SELECT ... FOR UPDATE, which serializes racing
// buyers: the loser blocks until the winner commits, then finds no row.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"offsetledger/internal/ledger/store"
	dErrors "offsetledger/pkg/domain-errors"
	"offsetledger/pkg/platform/sentinel"
	txcontext "offsetledger/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

const defaultTxTimeout = 5 * time.Second

// Postgres error codes the stores translate into sentinel facts.
const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

type Ledger struct {
	db      *sql.DB
	timeout time.Duration
}

type Option func(*Ledger)

func WithTxTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

func New(db *sql.DB, opts ...Option) *Ledger {
	l := &Ledger{db: db, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ store.Ledger = (*Ledger)(nil)

// Migrate creates the ledger tables if they do not exist.
func (l *Ledger) Migrate(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

func (l *Ledger) RunInTx(ctx context.Context, fn func(ctx context.Context, s store.Stores) error) error {
	return l.inTx(ctx, nil, true, fn)
}

func (l *Ledger) View(ctx context.Context, fn func(ctx context.Context, s store.Stores) error) error {
	return l.inTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, false, fn)
}

func (l *Ledger) inTx(ctx context.Context, opts *sql.TxOptions, lock bool, fn func(ctx context.Context, s store.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	tx, err := l.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ctx = txcontext.WithTx(ctx, tx)
	if err := fn(ctx, l.stores(lock)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func (l *Ledger) stores(lock bool) store.Stores {
	base := &stores{db: l.db, lock: lock}
	return store.Stores{
		Certificates:  (*certificateStore)(base),
		Verifications: (*verificationStore)(base),
		Listings:      (*listingStore)(base),
		Retirements:   (*retirementStore)(base),
		Balances:      (*balanceStore)(base),
		Outbox:        (*outboxWriter)(base),
	}
}

// stores is shared by the typed store views below.
type stores struct {
	db *sql.DB
	// lock adds FOR UPDATE to point reads; off for read-only views.
	lock bool
}

func (s *stores) exec(ctx context.Context) txcontext.DBTX {
	return txcontext.Executor(ctx, s.db)
}

func (s *stores) forUpdate() string {
	if s.lock {
		return " FOR UPDATE"
	}
	return ""
}

// translate maps driver errors onto sentinel facts.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%s: %w", what, sentinel.ErrConflict)
		case checkViolation:
			return fmt.Errorf("%s: %w", what, sentinel.ErrInvalidState)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}
