package models

import (
	"time"

	id "offsetledger/pkg/domain"
)

// EventType names a ledger event on the wire. Values are stable; indexers key
// off them.
type EventType string

const (
	EventMinted            EventType = "minted"
	EventListed            EventType = "listed"
	EventSold              EventType = "sold"
	EventCancelled         EventType = "cancelled"
	EventRetired           EventType = "retired"
	EventCertificateIssued EventType = "certificate_issued"
	EventFunded            EventType = "funded"
	EventRetirementFrozen  EventType = "retirement_frozen"
)

// Event is implemented by every payload below. AggregateID is the partition
// key: events about the same certificate (or retirement, or principal) stay
// ordered for consumers.
type Event interface {
	EventType() string
	AggregateID() string
}

type Minted struct {
	CertificateID  id.CertificateID  `json:"certificate_id"`
	Recipient      id.PrincipalID    `json:"recipient"`
	Amount         uint64            `json:"amount"`
	ActivityCode   uint8             `json:"activity_code"`
	VerificationID id.VerificationID `json:"verification_id"`
}

type Listed struct {
	ListingID     id.ListingID     `json:"listing_id"`
	CertificateID id.CertificateID `json:"certificate_id"`
	Seller        id.PrincipalID   `json:"seller"`
	Price         uint64           `json:"price"`
}

type Sold struct {
	ListingID     id.ListingID     `json:"listing_id"`
	CertificateID id.CertificateID `json:"certificate_id"`
	Seller        id.PrincipalID   `json:"seller"`
	Buyer         id.PrincipalID   `json:"buyer"`
	Price         uint64           `json:"price"`
}

type Cancelled struct {
	ListingID     id.ListingID     `json:"listing_id"`
	CertificateID id.CertificateID `json:"certificate_id"`
	Seller        id.PrincipalID   `json:"seller"`
}

type Retired struct {
	CertificateID  id.CertificateID  `json:"certificate_id"`
	Retirer        id.PrincipalID    `json:"retirer"`
	Amount         uint64            `json:"amount"`
	VerificationID id.VerificationID `json:"verification_id"`
}

// CertificateIssued and RetirementFrozen carry the retired certificate's id so
// every event about one certificate shares a partition key.
type CertificateIssued struct {
	RetirementID   id.RetirementID   `json:"retirement_id"`
	CertificateID  id.CertificateID  `json:"certificate_id"`
	Retirer        id.PrincipalID    `json:"retirer"`
	Amount         uint64            `json:"amount"`
	VerificationID id.VerificationID `json:"verification_id"`
	RetiredAt      time.Time         `json:"retired_at"`
}

type Funded struct {
	Principal id.PrincipalID `json:"principal"`
	Amount    uint64         `json:"amount"`
	Balance   uint64         `json:"balance"`
}

type RetirementFrozen struct {
	RetirementID  id.RetirementID  `json:"retirement_id"`
	CertificateID id.CertificateID `json:"certificate_id"`
	Owner         id.PrincipalID   `json:"owner"`
	FrozenAt      time.Time        `json:"frozen_at"`
}

func (Minted) EventType() string            { return string(EventMinted) }
func (Listed) EventType() string            { return string(EventListed) }
func (Sold) EventType() string              { return string(EventSold) }
func (Cancelled) EventType() string         { return string(EventCancelled) }
func (Retired) EventType() string           { return string(EventRetired) }
func (CertificateIssued) EventType() string { return string(EventCertificateIssued) }
func (Funded) EventType() string            { return string(EventFunded) }
func (RetirementFrozen) EventType() string  { return string(EventRetirementFrozen) }

func (e Minted) AggregateID() string            { return e.CertificateID.String() }
func (e Listed) AggregateID() string            { return e.CertificateID.String() }
func (e Sold) AggregateID() string              { return e.CertificateID.String() }
func (e Cancelled) AggregateID() string         { return e.CertificateID.String() }
func (e Retired) AggregateID() string           { return e.CertificateID.String() }
func (e CertificateIssued) AggregateID() string { return e.CertificateID.String() }
func (e Funded) AggregateID() string            { return e.Principal.String() }
func (e RetirementFrozen) AggregateID() string  { return e.CertificateID.String() }
