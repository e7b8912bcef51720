package product

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/altave/settlement-service/internal/model"
)

// Repository is the product side of the ledger store. The tx-scoped methods
// take an sqlx.ExtContext so the settlement unit of work can run them inside
// its own transaction; stock never mutates outside one.
type Repository interface {
	Create(ctx context.Context, p *model.Product) error
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// GetForSettlement loads the products referenced by a checkout inside the
	// caller's transaction, in a stable order.
	GetForSettlement(ctx context.Context, ext sqlx.ExtContext, ids []string) ([]model.Product, error)

	// Reserve atomically decrements stock by qty, transitioning the product
	// to sold when stock reaches zero. Fails with model.ErrOutOfStock,
	// model.ErrProductUnavailable or model.ErrProductNotFound.
	Reserve(ctx context.Context, ext sqlx.ExtContext, productID string, qty int) (*model.StockReservation, error)
}
