package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"offsetledger/internal/ledger/models"
	"offsetledger/internal/outbox"
	id "offsetledger/pkg/domain"
	"offsetledger/pkg/platform/sentinel"
)

type certificateStore stores

const certificateColumns = `id, amount, activity_code, verification_id, issued_at, owner, listing_id`

func (s *certificateStore) Create(ctx context.Context, cert *models.Certificate) error {
	owner, listing := locationColumns(cert.Location)
	_, err := (*stores)(s).exec(ctx).ExecContext(ctx, `
		INSERT INTO certificates (`+certificateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(cert.ID), cert.Amount, int16(cert.ActivityCode), cert.VerificationID.String(), cert.IssuedAt, owner, listing)
	return translate(err, "insert certificate")
}

func (s *certificateStore) FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	row := (*stores)(s).exec(ctx).QueryRowContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE id = $1`+(*stores)(s).forUpdate(),
		uuid.UUID(certID))
	cert, err := scanCertificate(row)
	if err != nil {
		return nil, translate(err, "find certificate")
	}
	return cert, nil
}

func (s *certificateStore) UpdateLocation(ctx context.Context, cert *models.Certificate) error {
	owner, listing := locationColumns(cert.Location)
	res, err := (*stores)(s).exec(ctx).ExecContext(ctx,
		`UPDATE certificates SET owner = $2, listing_id = $3 WHERE id = $1`,
		uuid.UUID(cert.ID), owner, listing)
	return affectedOne(res, err, "update certificate location")
}

func (s *certificateStore) Delete(ctx context.Context, certID id.CertificateID) error {
	res, err := (*stores)(s).exec(ctx).ExecContext(ctx, `DELETE FROM certificates WHERE id = $1`, uuid.UUID(certID))
	return affectedOne(res, err, "delete certificate")
}

func (s *certificateStore) ListByOwner(ctx context.Context, owner id.PrincipalID) ([]*models.Certificate, error) {
	rows, err := (*stores)(s).exec(ctx).QueryContext(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE owner = $1 ORDER BY issued_at, id`,
		owner.String())
	if err != nil {
		return nil, translate(err, "list certificates")
	}
	defer rows.Close()

	var out []*models.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, translate(err, "scan certificate")
		}
		out = append(out, cert)
	}
	return out, translate(rows.Err(), "list certificates")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCertificate(row rowScanner) (*models.Certificate, error) {
	var (
		certID       uuid.UUID
		amount       uint64
		activityCode int16
		vid          string
		issuedAt     time.Time
		owner        sql.NullString
		listing      uuid.NullUUID
	)
	if err := row.Scan(&certID, &amount, &activityCode, &vid, &issuedAt, &owner, &listing); err != nil {
		return nil, err
	}
	cert := &models.Certificate{
		ID:             id.CertificateID(certID),
		Amount:         amount,
		ActivityCode:   uint8(activityCode),
		VerificationID: id.VerificationID(vid),
		IssuedAt:       issuedAt,
	}
	switch {
	case owner.Valid:
		cert.Location = models.Owned(id.PrincipalID(owner.String))
	case listing.Valid:
		cert.Location = models.Escrowed(id.ListingID(listing.UUID))
	default:
		return nil, fmt.Errorf("certificate %s has no location", certID)
	}
	return cert, nil
}

func locationColumns(loc models.Location) (sql.NullString, uuid.NullUUID) {
	if owner, ok := loc.Owner(); ok {
		return sql.NullString{String: owner.String(), Valid: true}, uuid.NullUUID{}
	}
	if listing, ok := loc.Listing(); ok {
		return sql.NullString{}, uuid.NullUUID{UUID: uuid.UUID(listing), Valid: true}
	}
	return sql.NullString{}, uuid.NullUUID{}
}

type verificationStore stores

func (s *verificationStore) Register(ctx context.Context, verificationID id.VerificationID, certID id.CertificateID) error {
	res, err := (*stores)(s).exec(ctx).ExecContext(ctx, `
		INSERT INTO verifications (verification_id, certificate_id)
		VALUES ($1, $2)
		ON CONFLICT (verification_id) DO NOTHING
	`, verificationID.String(), uuid.UUID(certID))
	if err != nil {
		return translate(err, "register verification")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, "register verification")
	}
	if n == 0 {
		return fmt.Errorf("register verification: %w", sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *verificationStore) Lookup(ctx context.Context, verificationID id.VerificationID) (id.CertificateID, error) {
	var certID uuid.UUID
	err := (*stores)(s).exec(ctx).QueryRowContext(ctx,
		`SELECT certificate_id FROM verifications WHERE verification_id = $1`,
		verificationID.String()).Scan(&certID)
	if err != nil {
		return id.CertificateID{}, translate(err, "lookup verification")
	}
	return id.CertificateID(certID), nil
}

type listingStore stores

func (s *listingStore) Create(ctx context.Context, listing *models.Listing) error {
	_, err := (*stores)(s).exec(ctx).ExecContext(ctx, `
		INSERT INTO listings (id, certificate_id, price, seller, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(listing.ID), uuid.UUID(listing.CertificateID), listing.Price, listing.Seller.String(), listing.CreatedAt)
	return translate(err, "insert listing")
}

func (s *listingStore) FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	var (
		lid, certID uuid.UUID
		price       uint64
		seller      string
		createdAt   time.Time
	)
	err := (*stores)(s).exec(ctx).QueryRowContext(ctx,
		`SELECT id, certificate_id, price, seller, created_at FROM listings WHERE id = $1`+(*stores)(s).forUpdate(),
		uuid.UUID(listingID)).Scan(&lid, &certID, &price, &seller, &createdAt)
	if err != nil {
		return nil, translate(err, "find listing")
	}
	return &models.Listing{
		ID:            id.ListingID(lid),
		CertificateID: id.CertificateID(certID),
		Price:         price,
		Seller:        id.PrincipalID(seller),
		CreatedAt:     createdAt,
	}, nil
}

func (s *listingStore) Delete(ctx context.Context, listingID id.ListingID) error {
	res, err := (*stores)(s).exec(ctx).ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, uuid.UUID(listingID))
	return affectedOne(res, err, "delete listing")
}

func (s *listingStore) ActiveIDs(ctx context.Context) ([]id.ListingID, error) {
	rows, err := (*stores)(s).exec(ctx).QueryContext(ctx, `SELECT id FROM listings ORDER BY created_at, id`)
	if err != nil {
		return nil, translate(err, "list listings")
	}
	defer rows.Close()

	var out []id.ListingID
	for rows.Next() {
		var lid uuid.UUID
		if err := rows.Scan(&lid); err != nil {
			return nil, translate(err, "scan listing id")
		}
		out = append(out, id.ListingID(lid))
	}
	return out, translate(rows.Err(), "list listings")
}

type retirementStore stores

const retirementColumns = `id, original_certificate_id, retirer, amount, verification_id, retired_at, frozen, frozen_at`

func (s *retirementStore) Create(ctx context.Context, ret *models.RetirementCertificate) error {
	_, err := (*stores)(s).exec(ctx).ExecContext(ctx, `
		INSERT INTO retirements (`+retirementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(ret.ID), uuid.UUID(ret.OriginalCertificateID), ret.Retirer.String(), ret.Amount,
		ret.VerificationID.String(), ret.RetiredAt, ret.Frozen, ret.FrozenAt)
	return translate(err, "insert retirement")
}

func (s *retirementStore) FindByID(ctx context.Context, retirementID id.RetirementID) (*models.RetirementCertificate, error) {
	row := (*stores)(s).exec(ctx).QueryRowContext(ctx,
		`SELECT `+retirementColumns+` FROM retirements WHERE id = $1`+(*stores)(s).forUpdate(),
		uuid.UUID(retirementID))
	ret, err := scanRetirement(row)
	if err != nil {
		return nil, translate(err, "find retirement")
	}
	return ret, nil
}

// Update persists the freeze flag; no other column of a retirement is mutable.
func (s *retirementStore) Update(ctx context.Context, ret *models.RetirementCertificate) error {
	res, err := (*stores)(s).exec(ctx).ExecContext(ctx,
		`UPDATE retirements SET frozen = $2, frozen_at = $3 WHERE id = $1`,
		uuid.UUID(ret.ID), ret.Frozen, ret.FrozenAt)
	return affectedOne(res, err, "update retirement")
}

func (s *retirementStore) ListByOwner(ctx context.Context, owner id.PrincipalID) ([]*models.RetirementCertificate, error) {
	rows, err := (*stores)(s).exec(ctx).QueryContext(ctx,
		`SELECT `+retirementColumns+` FROM retirements WHERE retirer = $1 ORDER BY retired_at, id`,
		owner.String())
	if err != nil {
		return nil, translate(err, "list retirements")
	}
	defer rows.Close()

	var out []*models.RetirementCertificate
	for rows.Next() {
		ret, err := scanRetirement(rows)
		if err != nil {
			return nil, translate(err, "scan retirement")
		}
		out = append(out, ret)
	}
	return out, translate(rows.Err(), "list retirements")
}

func scanRetirement(row rowScanner) (*models.RetirementCertificate, error) {
	var (
		retID, origID uuid.UUID
		retirer, vid  string
		frozenAt      sql.NullTime
		ret           models.RetirementCertificate
	)
	if err := row.Scan(&retID, &origID, &retirer, &ret.Amount, &vid, &ret.RetiredAt, &ret.Frozen, &frozenAt); err != nil {
		return nil, err
	}
	ret.ID = id.RetirementID(retID)
	ret.OriginalCertificateID = id.CertificateID(origID)
	ret.Retirer = id.PrincipalID(retirer)
	ret.VerificationID = id.VerificationID(vid)
	if frozenAt.Valid {
		t := frozenAt.Time
		ret.FrozenAt = &t
	}
	return &ret, nil
}

type balanceStore stores

func (s *balanceStore) Get(ctx context.Context, owner id.PrincipalID) (uint64, error) {
	var amount uint64
	err := (*stores)(s).exec(ctx).QueryRowContext(ctx,
		`SELECT amount FROM balances WHERE owner = $1`, owner.String()).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, translate(err, "get balance")
	}
	return amount, nil
}

func (s *balanceStore) Credit(ctx context.Context, owner id.PrincipalID, amount uint64) (uint64, error) {
	var balance uint64
	err := (*stores)(s).exec(ctx).QueryRowContext(ctx, `
		INSERT INTO balances (owner, amount) VALUES ($1, $2)
		ON CONFLICT (owner) DO UPDATE SET amount = balances.amount + EXCLUDED.amount
		RETURNING amount
	`, owner.String(), amount).Scan(&balance)
	if err != nil {
		return 0, translate(err, "credit balance")
	}
	return balance, nil
}

func (s *balanceStore) Debit(ctx context.Context, owner id.PrincipalID, amount uint64) (uint64, error) {
	if amount == 0 {
		return s.Get(ctx, owner)
	}
	var balance uint64
	err := (*stores)(s).exec(ctx).QueryRowContext(ctx, `
		UPDATE balances SET amount = amount - $2
		WHERE owner = $1 AND amount >= $2
		RETURNING amount
	`, owner.String(), amount).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("debit balance: %w", sentinel.ErrInsufficient)
	}
	if err != nil {
		return 0, translate(err, "debit balance")
	}
	return balance, nil
}

// Lock creates missing balance rows and locks them ordered by owner.
func (s *balanceStore) Lock(ctx context.Context, owners ...id.PrincipalID) error {
	if !(*stores)(s).lock || len(owners) == 0 {
		return nil
	}
	keys := make([]string, 0, len(owners))
	for _, o := range owners {
		keys = append(keys, o.String())
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	exec := (*stores)(s).exec(ctx)
	if _, err := exec.ExecContext(ctx, `
		INSERT INTO balances (owner, amount)
		SELECT owner, 0 FROM unnest($1::text[]) AS owner ORDER BY owner
		ON CONFLICT (owner) DO NOTHING
	`, pq.Array(keys)); err != nil {
		return translate(err, "lock balances")
	}
	rows, err := exec.QueryContext(ctx,
		`SELECT owner FROM balances WHERE owner = ANY($1) ORDER BY owner FOR UPDATE`, pq.Array(keys))
	if err != nil {
		return translate(err, "lock balances")
	}
	defer rows.Close()
	for rows.Next() {
	}
	return translate(rows.Err(), "lock balances")
}

type outboxWriter stores

func (s *outboxWriter) Append(ctx context.Context, entries ...outbox.Entry) error {
	for _, e := range entries {
		_, err := (*stores)(s).exec(ctx).ExecContext(ctx, `
			INSERT INTO ledger_outbox (id, event_type, aggregate_id, payload, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, e.ID, e.EventType, e.AggregateID, e.Payload, e.CreatedAt)
		if err != nil {
			return translate(err, "insert outbox entry")
		}
	}
	return nil
}

func affectedOne(res sql.Result, err error, what string) error {
	if err != nil {
		return translate(err, what)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, what)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	}
	return nil
}
