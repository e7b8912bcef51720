package settlement

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/altave/settlement-service/internal/gateway"
	"github.com/altave/settlement-service/internal/model"
)

// Repository is the transaction side of the ledger store.
//
// WithinTx is the unit-of-work boundary: the transaction builder loads
// products, reserves stock and inserts the settlement rows inside one call,
// and a failure anywhere rolls the whole thing back. Status transitions are
// guarded single-statement updates, so a stale caller can never skip the
// state machine. Methods taking an sqlx.ExtContext run on it when non-nil
// (inside a WithinTx unit) and on the pool when nil.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ext sqlx.ExtContext) error) error
	InsertTransaction(ctx context.Context, ext sqlx.ExtContext, txn *model.Transaction, items []model.TransactionItem) error

	GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*model.Transaction, error)
	GetItems(ctx context.Context, transactionID string) ([]model.TransactionItem, error)

	// SetChargeID stores the external charge id, write-once.
	SetChargeID(ctx context.Context, ext sqlx.ExtContext, transactionID, chargeID string) (bool, error)

	ReleaseEscrow(ctx context.Context, ext sqlx.ExtContext, transactionID string, releaseDate time.Time) (bool, error)
	DisputeEscrow(ctx context.Context, ext sqlx.ExtContext, transactionID string) (bool, error)
	MarkPayoutPaid(ctx context.Context, ext sqlx.ExtContext, transactionID string) (bool, error)
	MarkPayoutFailed(ctx context.Context, ext sqlx.ExtContext, transactionID string) (bool, error)

	// RecordEvent persists a webhook event id; false means the id was
	// already processed and the delivery must be treated as a duplicate.
	// Called inside the same unit of work as the transition the event
	// drives, so a failed transition rolls the record back and the
	// redelivery is processed fresh.
	RecordEvent(ctx context.Context, ext sqlx.ExtContext, ev *gateway.Event) (bool, error)

	ListAutoReleasable(ctx context.Context, heldBefore time.Time, limit int) ([]model.Transaction, error)
	ListPayoutRetries(ctx context.Context, releasedBefore time.Time, limit int) ([]model.Transaction, error)
	CountUncharged(ctx context.Context, olderThan time.Time) (int, error)
}
