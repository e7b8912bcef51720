package dto

import "github.com/altave/settlement-service/internal/model"

// ListingResponse is a product with its category detail blob decoded into
// the matching concrete shape.
type ListingResponse struct {
	*model.Product
	Details any `json:"details,omitempty"`
}

func NewListingResponse(p *model.Product) (*ListingResponse, error) {
	details, err := p.Details()
	if err != nil {
		return nil, err
	}
	return &ListingResponse{Product: p, Details: details}, nil
}
