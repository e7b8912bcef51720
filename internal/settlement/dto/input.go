package dto

import "github.com/altave/settlement-service/internal/model"

type ItemInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CheckoutInput struct {
	BuyerID    string      `json:"buyer_id"`
	SellerID   string      `json:"seller_id"`
	PaymentRef string      `json:"payment_ref"`
	Items      []ItemInput `json:"items"`
}

// Normalize validates the request and collapses duplicate product lines into
// one, summing quantities. It runs before any mutation; a failure here is
// fully recoverable by the caller.
func (in *CheckoutInput) Normalize() error {
	if in.BuyerID == "" || in.SellerID == "" {
		return model.ErrInvalidParty
	}
	if len(in.Items) == 0 {
		return model.ErrEmptyCart
	}

	merged := make([]ItemInput, 0, len(in.Items))
	index := make(map[string]int, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return model.ErrInvalidQuantity
		}
		if i, ok := index[it.ProductID]; ok {
			merged[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(merged)
		merged = append(merged, it)
	}
	in.Items = merged
	return nil
}
