package seller

import (
	"context"

	"github.com/altave/settlement-service/internal/model"
)

type Repository interface {
	Create(ctx context.Context, d *model.SellerDetails) error
	GetByUserID(ctx context.Context, userID string) (*model.SellerDetails, error)

	// RecountActiveListings rebuilds the derived active_listings counters
	// from the live products table. Eventually consistent; never called on
	// the settlement path.
	RecountActiveListings(ctx context.Context) (int64, error)
}
