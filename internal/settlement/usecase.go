package settlement

import (
	"context"

	"github.com/altave/settlement-service/internal/gateway"
	"github.com/altave/settlement-service/internal/model"
	"github.com/altave/settlement-service/internal/settlement/dto"
)

type UseCase interface {
	// Checkout builds the settlement atomically, then charges the gateway.
	// A committed transaction survives gateway trouble; only reservation and
	// validation failures abort it.
	Checkout(ctx context.Context, input *dto.CheckoutInput) (*dto.CheckoutResult, error)

	// Release drives escrow held -> released and initiates the seller payout.
	Release(ctx context.Context, transactionID string) (*model.Transaction, error)

	// Dispute drives escrow held -> disputed on a buyer signal.
	Dispute(ctx context.Context, transactionID string) (*model.Transaction, error)

	Get(ctx context.Context, transactionID string) (*model.Transaction, []model.TransactionItem, error)

	// HandleGatewayEvent processes a webhook delivery, idempotent per event id.
	HandleGatewayEvent(ctx context.Context, ev *gateway.Event) error
}
