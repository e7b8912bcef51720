package model

import (
	"errors"
	"time"
)

var (
	ErrCrossSellerCart         = errors.New("cart items span more than one seller")
	ErrInvalidParty            = errors.New("checkout requires a buyer and a seller")
	ErrEmptyCart               = errors.New("checkout requires at least one item")
	ErrInvalidQuantity         = errors.New("item quantity must be positive")
	ErrInvalidEscrowTransition = errors.New("invalid escrow state transition")
	ErrInvalidPayoutTransition = errors.New("invalid payout state transition")
	ErrEscrowNotReleased       = errors.New("payout requires a released escrow")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrPaymentDeclined         = errors.New("payment was declined by the gateway")
)

type EscrowStatus string

const (
	EscrowHeld     EscrowStatus = "held"
	EscrowReleased EscrowStatus = "released"
	EscrowDisputed EscrowStatus = "disputed"
)

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutPaid    PayoutStatus = "paid"
	PayoutFailed  PayoutStatus = "failed"
)

// Transaction is the immutable financial record of one checkout against one
// seller. Only the two status fields, the charge id and the release date are
// ever written after creation.
type Transaction struct {
	ID            string       `db:"id" json:"id"`
	BuyerID       string       `db:"buyer_id" json:"buyer_id"`
	SellerID      string       `db:"seller_id" json:"seller_id"`
	TotalAmount   float64      `db:"total_amount" json:"total_amount"`
	CommissionFee float64      `db:"commission_fee" json:"commission_fee"`
	NetPayout     float64      `db:"net_payout" json:"net_payout"`
	ChargeID      *string      `db:"charge_id" json:"charge_id"`
	EscrowStatus  EscrowStatus `db:"escrow_status" json:"escrow_status"`
	PayoutStatus  PayoutStatus `db:"payout_status" json:"payout_status"`
	PurchaseDate  time.Time    `db:"purchase_date" json:"purchase_date"`
	ReleaseDate   *time.Time   `db:"release_date" json:"release_date"`
}

// TransactionItem snapshots one product line at purchase time. Title and unit
// price are frozen copies; later edits to the product never touch them.
type TransactionItem struct {
	ID            string  `db:"id" json:"id"`
	TransactionID string  `db:"transaction_id" json:"transaction_id"`
	ProductID     string  `db:"product_id" json:"product_id"`
	ProductTitle  string  `db:"product_title" json:"product_title"`
	Quantity      int     `db:"quantity" json:"quantity"`
	UnitPrice     float64 `db:"unit_price" json:"unit_price"`
	TotalPrice    float64 `db:"total_price" json:"total_price"`
}

// ReleaseEscrow drives held -> released and stamps the release date.
// Released and disputed are both terminal.
func (t *Transaction) ReleaseEscrow(now time.Time) error {
	if t.EscrowStatus != EscrowHeld {
		return ErrInvalidEscrowTransition
	}
	t.EscrowStatus = EscrowReleased
	rd := now.UTC()
	t.ReleaseDate = &rd
	return nil
}

// DisputeEscrow drives held -> disputed. Resolution out of disputed is an
// external moderation concern, not modeled here.
func (t *Transaction) DisputeEscrow() error {
	if t.EscrowStatus != EscrowHeld {
		return ErrInvalidEscrowTransition
	}
	t.EscrowStatus = EscrowDisputed
	return nil
}

// MarkPayoutPaid drives pending -> paid. Payout never precedes escrow
// release.
func (t *Transaction) MarkPayoutPaid() error {
	if t.PayoutStatus != PayoutPending {
		return ErrInvalidPayoutTransition
	}
	if t.EscrowStatus != EscrowReleased {
		return ErrEscrowNotReleased
	}
	t.PayoutStatus = PayoutPaid
	return nil
}

// MarkPayoutFailed drives pending -> failed. The escrow state is left alone;
// a failed payout on a released escrow is a reconciliation case.
func (t *Transaction) MarkPayoutFailed() error {
	if t.PayoutStatus != PayoutPending {
		return ErrInvalidPayoutTransition
	}
	t.PayoutStatus = PayoutFailed
	return nil
}
