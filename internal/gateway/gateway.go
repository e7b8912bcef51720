// Package gateway defines the contract against the external payment
// processor. The engine only ever sees two edges: a synchronous charge/payout
// call out, and asynchronous webhook events back in.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrChargeDeclined is the gateway's definitive refusal of a charge, as
// opposed to transport errors or timeouts where the outcome is unknown.
var ErrChargeDeclined = errors.New("gateway declined the charge")

type Gateway interface {
	// Charge captures totalAmount against the buyer's payment reference and
	// returns the external charge id.
	Charge(ctx context.Context, buyerPaymentRef string, amount float64) (string, error)
	// Payout initiates the transfer of the net proceeds to the seller.
	// Confirmation arrives asynchronously as a payout.paid / payout.failed
	// webhook event.
	Payout(ctx context.Context, payoutRef string, amount float64) error
}

type EventType string

const (
	EventChargeCaptured EventType = "charge.captured"
	EventChargeDisputed EventType = "charge.disputed"
	EventPayoutPaid     EventType = "payout.paid"
	EventPayoutFailed   EventType = "payout.failed"
)

// Event is one webhook delivery. Delivery is at-least-once; ID is the
// idempotency key.
type Event struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	TransactionID string    `json:"transaction_id"`
	ChargeID      string    `json:"charge_id,omitempty"`
	Amount        float64   `json:"amount,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Validate rejects malformed deliveries at the boundary.
func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event id is required")
	}
	if e.TransactionID == "" {
		return fmt.Errorf("event %s has no transaction id", e.ID)
	}
	switch e.Type {
	case EventChargeCaptured, EventChargeDisputed, EventPayoutPaid, EventPayoutFailed:
		return nil
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
}
