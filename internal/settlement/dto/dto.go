package dto

import "github.com/altave/settlement-service/internal/model"

type PaymentState string

const (
	// PaymentCharged means the gateway confirmed the charge synchronously.
	PaymentCharged PaymentState = "charged"
	// PaymentProcessing means the charge outcome is unknown (timeout or
	// transport failure); the reconciliation sweep or a webhook resolves it.
	PaymentProcessing PaymentState = "processing"
)

type CheckoutResult struct {
	Transaction *model.Transaction      `json:"transaction"`
	Items       []model.TransactionItem `json:"items"`
	Payment     PaymentState            `json:"payment"`
}
