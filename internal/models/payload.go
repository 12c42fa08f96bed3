package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Payload is the kind-specific part of a transaction. It is a closed set:
// VotePayload for KindVote and TicketPayload for KindTicket.
type Payload interface {
	Kind() TransactionKind
	Target() uuid.UUID
	Units() int64
}

type VotePayload struct {
	CandidateID uuid.UUID `json:"candidateId"`
	Quantity    int64     `json:"quantity"`
}

func (p VotePayload) Kind() TransactionKind { return KindVote }
func (p VotePayload) Target() uuid.UUID     { return p.CandidateID }
func (p VotePayload) Units() int64          { return p.Quantity }

type TicketPayload struct {
	TicketTypeID uuid.UUID `json:"ticketTypeId"`
	Quantity     int64     `json:"quantity"`
}

func (p TicketPayload) Kind() TransactionKind { return KindTicket }
func (p TicketPayload) Target() uuid.UUID     { return p.TicketTypeID }
func (p TicketPayload) Units() int64          { return p.Quantity }

// NewPayload builds the payload variant for kind
func NewPayload(kind TransactionKind, targetID uuid.UUID, quantity int64) (Payload, error) {
	switch kind {
	case KindVote:
		return VotePayload{CandidateID: targetID, Quantity: quantity}, nil
	case KindTicket:
		return TicketPayload{TicketTypeID: targetID, Quantity: quantity}, nil
	default:
		return nil, fmt.Errorf("unknown transaction kind %q", kind)
	}
}

// EncodePayload serialises a payload for the JSONB payload column
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("payload is required")
	}
	return json.Marshal(p)
}

// DecodePayload restores the payload variant selected by kind
func DecodePayload(kind TransactionKind, raw []byte) (Payload, error) {
	switch kind {
	case KindVote:
		var p VotePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode vote payload: %w", err)
		}
		return p, nil
	case KindTicket:
		var p TicketPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode ticket payload: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown transaction kind %q", kind)
	}
}
