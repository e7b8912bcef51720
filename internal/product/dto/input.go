package dto

import (
	"encoding/json"
	"fmt"

	"github.com/altave/settlement-service/internal/model"
)

type CreateListingInput struct {
	SellerID string                `json:"seller_id"`
	Category model.ProductCategory `json:"category"`
	Title    string                `json:"title"`
	Price    float64               `json:"price"`
	Stock    int                   `json:"stock"`
	Details  json.RawMessage       `json:"details,omitempty"`
}

// Validate checks the listing at the boundary, including that the detail
// blob decodes into the shape its category dictates.
func (in *CreateListingInput) Validate() error {
	if in.SellerID == "" {
		return fmt.Errorf("%w: seller_id is required", model.ErrInvalidListing)
	}
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", model.ErrInvalidListing)
	}
	if !in.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", model.ErrInvalidListing, in.Category)
	}
	if in.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", model.ErrInvalidListing)
	}
	if in.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", model.ErrInvalidListing)
	}
	if in.Category.SingleUnit() && in.Stock != 1 {
		return fmt.Errorf("%w: %s listings carry exactly one unit", model.ErrInvalidListing, in.Category)
	}

	if len(in.Details) > 0 {
		probe := model.Product{Category: in.Category, DetailsJSON: string(in.Details)}
		if _, err := probe.Details(); err != nil {
			return fmt.Errorf("%w: %v", model.ErrInvalidListing, err)
		}
	}
	return nil
}
