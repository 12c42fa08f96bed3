package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventStatus gates which purchases an event accepts
type EventStatus string

const (
	EventDraft    EventStatus = "DRAFT"
	EventUpcoming EventStatus = "UPCOMING"
	EventLive     EventStatus = "LIVE"
	EventEnded    EventStatus = "ENDED"
)

// VoteTarget is a candidate together with the parents whose counters a vote moves
type VoteTarget struct {
	CandidateID uuid.UUID
	CategoryID  uuid.UUID
	EventID     uuid.UUID
	OrganizerID uuid.UUID
	EventStatus EventStatus
	UnitPrice   decimal.Decimal
	Currency    string
}

// TicketTarget is a ticket type together with its event and organizer
type TicketTarget struct {
	TicketTypeID uuid.UUID
	EventID      uuid.UUID
	OrganizerID  uuid.UUID
	EventStatus  EventStatus
	UnitPrice    decimal.Decimal
	Currency     string
	Capacity     *int64
	Sold         int64
}

// Remaining returns the unsold capacity, or -1 when the ticket type is unlimited
func (t *TicketTarget) Remaining() int64 {
	if t.Capacity == nil {
		return -1
	}
	return *t.Capacity - t.Sold
}

// VoteBatch proves a successful VOTE transaction produced Quantity votes
type VoteBatch struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transactionId"`
	CandidateID   uuid.UUID `json:"candidateId"`
	Quantity      int64     `json:"quantity"`
	VoterName     string    `json:"voterName,omitempty"`
	VoterPhone    string    `json:"voterPhone,omitempty"`
	VoterEmail    string    `json:"voterEmail,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// TicketBatch proves a successful TICKET transaction issued Quantity tickets
type TicketBatch struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transactionId"`
	TicketTypeID  uuid.UUID `json:"ticketTypeId"`
	Quantity      int64     `json:"quantity"`
	Code          string    `json:"code"`
	HolderName    string    `json:"holderName,omitempty"`
	HolderPhone   string    `json:"holderPhone,omitempty"`
	HolderEmail   string    `json:"holderEmail,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CandidateTally is one row of live results
type CandidateTally struct {
	CandidateID uuid.UUID `json:"id"`
	CategoryID  uuid.UUID `json:"categoryId"`
	Name        string    `json:"name"`
	Votes       int64     `json:"votes"`
	Counter     int64     `json:"-"`
}

// EventResults is the cached results document for one event
type EventResults struct {
	EventID    uuid.UUID        `json:"eventId"`
	Candidates []CandidateTally `json:"candidates"`
	AsOf       time.Time        `json:"asOf"`
}
