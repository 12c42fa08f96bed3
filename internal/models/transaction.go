package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind identifies what a transaction buys
type TransactionKind string

const (
	KindVote   TransactionKind = "VOTE"
	KindTicket TransactionKind = "TICKET"
)

// TransactionStatus represents the lifecycle state of a transaction
type TransactionStatus string

const (
	StatusPending TransactionStatus = "PENDING"
	StatusSuccess TransactionStatus = "SUCCESS"
	StatusFailed  TransactionStatus = "FAILED"
)

// Outcome is the verified result reported for a payment
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
)

// Failure reasons recorded on FAILED transactions
const (
	ReasonDeclined  = "declined"
	ReasonCancelled = "cancelled"
	ReasonExpired   = "expired"
	ReasonProvider  = "provider_failed"
)

// Buyer holds the optional purchaser details captured at intent time
type Buyer struct {
	Name  string `json:"name,omitempty" validate:"omitempty,max=120"`
	Phone string `json:"phone,omitempty" validate:"omitempty,min=7,max=20"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
}

// Transaction represents one provisional or settled money movement
type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	Reference       string            `json:"reference"`
	Kind            TransactionKind   `json:"kind"`
	EventID         uuid.UUID         `json:"eventId"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	Status          TransactionStatus `json:"status"`
	PaymentProvider string            `json:"paymentProvider"`
	ProviderTxID    string            `json:"providerTxId,omitempty"`
	Buyer           Buyer             `json:"buyer"`
	Payload         Payload           `json:"payload"`
	FailureReason   string            `json:"failureReason,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	ExpiresAt       *time.Time        `json:"expiresAt,omitempty"`
	PaidAt          *time.Time        `json:"paidAt,omitempty"`
}

// IsTerminal reports whether the transaction can no longer change status
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusSuccess || t.Status == StatusFailed
}

// ConfirmationEvent is queued after a confirmation commits
type ConfirmationEvent struct {
	TransactionID uuid.UUID         `json:"transactionId"`
	Reference     string            `json:"reference"`
	Kind          TransactionKind   `json:"kind"`
	EventID       uuid.UUID         `json:"eventId"`
	TargetID      uuid.UUID         `json:"targetId"`
	Quantity      int64             `json:"quantity"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	Status        TransactionStatus `json:"status"`
	At            time.Time         `json:"at"`
}
