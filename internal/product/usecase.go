package product

import (
	"context"

	"github.com/altave/settlement-service/internal/model"
	"github.com/altave/settlement-service/internal/product/dto"
)

type UseCase interface {
	// CreateListing validates and stores a new listing. A seller's first
	// listing also creates their seller_details row on the free plan.
	CreateListing(ctx context.Context, input *dto.CreateListingInput) (*model.Product, error)

	GetListing(ctx context.Context, id string) (*model.Product, error)
}
