package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/altave/settlement-service/internal/gateway"
	"github.com/altave/settlement-service/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

// WithinTx runs fn inside one database transaction. Rollback on any error,
// commit otherwise. This is the all-or-nothing boundary for the transaction
// builder.
func (r *PGRepository) WithinTx(ctx context.Context, fn func(ext sqlx.ExtContext) error) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settlement tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PGRepository) InsertTransaction(ctx context.Context, ext sqlx.ExtContext, txn *model.Transaction, items []model.TransactionItem) error {
	query := ext.Rebind(`
        INSERT INTO transactions (
            id, buyer_id, seller_id, total_amount, commission_fee, net_payout,
            charge_id, escrow_status, payout_status, purchase_date, release_date
        )
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `)
	_, err := ext.ExecContext(ctx, query,
		txn.ID, txn.BuyerID, txn.SellerID, txn.TotalAmount, txn.CommissionFee,
		txn.NetPayout, txn.ChargeID, txn.EscrowStatus, txn.PayoutStatus,
		txn.PurchaseDate, txn.ReleaseDate)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", txn.ID, err)
	}

	itemQuery := ext.Rebind(`
        INSERT INTO transaction_items (
            id, transaction_id, product_id, product_title, quantity, unit_price, total_price
        )
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `)
	for _, it := range items {
		_, err := ext.ExecContext(ctx, itemQuery,
			it.ID, it.TransactionID, it.ProductID, it.ProductTitle,
			it.Quantity, it.UnitPrice, it.TotalPrice)
		if err != nil {
			return fmt.Errorf("insert transaction item %s: %w", it.ID, err)
		}
	}
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*model.Transaction, error) {
	ext = r.conn(ext)
	var txn model.Transaction
	query := ext.Rebind(`SELECT * FROM transactions WHERE id = ?`)
	if err := sqlx.GetContext(ctx, ext, &txn, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

func (r *PGRepository) GetItems(ctx context.Context, transactionID string) ([]model.TransactionItem, error) {
	var items []model.TransactionItem
	query := r.DB.Rebind(`SELECT * FROM transaction_items WHERE transaction_id = ? ORDER BY id`)
	if err := r.DB.SelectContext(ctx, &items, query, transactionID); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PGRepository) SetChargeID(ctx context.Context, ext sqlx.ExtContext, transactionID, chargeID string) (bool, error) {
	ext = r.conn(ext)
	query := ext.Rebind(`UPDATE transactions SET charge_id = ? WHERE id = ? AND charge_id IS NULL`)
	return r.guarded(ctx, ext, query, chargeID, transactionID)
}

func (r *PGRepository) ReleaseEscrow(ctx context.Context, ext sqlx.ExtContext, transactionID string, releaseDate time.Time) (bool, error) {
	ext = r.conn(ext)
	query := ext.Rebind(`
        UPDATE transactions SET escrow_status = ?, release_date = ?
        WHERE id = ? AND escrow_status = ?
    `)
	return r.guarded(ctx, ext, query, model.EscrowReleased, releaseDate, transactionID, model.EscrowHeld)
}

func (r *PGRepository) DisputeEscrow(ctx context.Context, ext sqlx.ExtContext, transactionID string) (bool, error) {
	ext = r.conn(ext)
	query := ext.Rebind(`
        UPDATE transactions SET escrow_status = ?
        WHERE id = ? AND escrow_status = ?
    `)
	return r.guarded(ctx, ext, query, model.EscrowDisputed, transactionID, model.EscrowHeld)
}

func (r *PGRepository) MarkPayoutPaid(ctx context.Context, ext sqlx.ExtContext, transactionID string) (bool, error) {
	ext = r.conn(ext)
	// payout never precedes escrow release, enforced here a second time
	query := ext.Rebind(`
        UPDATE transactions SET payout_status = ?
        WHERE id = ? AND payout_status = ? AND escrow_status = ?
    `)
	return r.guarded(ctx, ext, query, model.PayoutPaid, transactionID, model.PayoutPending, model.EscrowReleased)
}

func (r *PGRepository) MarkPayoutFailed(ctx context.Context, ext sqlx.ExtContext, transactionID string) (bool, error) {
	ext = r.conn(ext)
	query := ext.Rebind(`
        UPDATE transactions SET payout_status = ?
        WHERE id = ? AND payout_status = ?
    `)
	return r.guarded(ctx, ext, query, model.PayoutFailed, transactionID, model.PayoutPending)
}

func (r *PGRepository) RecordEvent(ctx context.Context, ext sqlx.ExtContext, ev *gateway.Event) (bool, error) {
	ext = r.conn(ext)
	query := ext.Rebind(`
        INSERT INTO gateway_events (event_id, event_type, transaction_id, processed_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (event_id) DO NOTHING
    `)
	return r.guarded(ctx, ext, query, ev.ID, ev.Type, ev.TransactionID, time.Now().UTC())
}

func (r *PGRepository) ListAutoReleasable(ctx context.Context, heldBefore time.Time, limit int) ([]model.Transaction, error) {
	var out []model.Transaction
	query := r.DB.Rebind(`
        SELECT * FROM transactions
        WHERE escrow_status = ? AND charge_id IS NOT NULL AND purchase_date < ?
        ORDER BY purchase_date
        LIMIT ?
    `)
	err := r.DB.SelectContext(ctx, &out, query, model.EscrowHeld, heldBefore, limit)
	return out, err
}

func (r *PGRepository) ListPayoutRetries(ctx context.Context, releasedBefore time.Time, limit int) ([]model.Transaction, error) {
	var out []model.Transaction
	query := r.DB.Rebind(`
        SELECT * FROM transactions
        WHERE escrow_status = ? AND payout_status = ? AND release_date < ?
        ORDER BY release_date
        LIMIT ?
    `)
	err := r.DB.SelectContext(ctx, &out, query, model.EscrowReleased, model.PayoutPending, releasedBefore, limit)
	return out, err
}

func (r *PGRepository) CountUncharged(ctx context.Context, olderThan time.Time) (int, error) {
	var n int
	query := r.DB.Rebind(`
        SELECT COUNT(*) FROM transactions
        WHERE charge_id IS NULL AND purchase_date < ?
    `)
	err := r.DB.GetContext(ctx, &n, query, olderThan)
	return n, err
}

func (r *PGRepository) guarded(ctx context.Context, ext sqlx.ExtContext, query string, args ...any) (bool, error) {
	res, err := ext.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// conn resolves the execution target: the caller's open transaction when one
// is in flight, the pool otherwise.
func (r *PGRepository) conn(ext sqlx.ExtContext) sqlx.ExtContext {
	if ext == nil {
		return r.DB
	}
	return ext
}
