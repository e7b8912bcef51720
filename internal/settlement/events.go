package settlement

import "time"

// Lifecycle event types published to the settlement topic.
const (
	EventTransactionCreated = "settlement.transaction_created"
	EventEscrowReleased     = "settlement.escrow_released"
	EventEscrowDisputed     = "settlement.escrow_disputed"
	EventPayoutPaid         = "settlement.payout_paid"
	EventPayoutFailed       = "settlement.payout_failed"
)

type Event struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}
