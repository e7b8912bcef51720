package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/altave/settlement-service/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, p *model.Product) error {
	query := r.DB.Rebind(`
        INSERT INTO products (
            id, seller_id, category, title, price, stock, status,
            details_json, created_at, updated_at
        )
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `)
	_, err := r.DB.ExecContext(ctx, query,
		p.ID, p.SellerID, p.Category, p.Title, p.Price, p.Stock, p.Status,
		p.DetailsJSON, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	query := r.DB.Rebind(`SELECT * FROM products WHERE id = ?`)
	if err := r.DB.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PGRepository) GetForSettlement(ctx context.Context, ext sqlx.ExtContext, ids []string) ([]model.Product, error) {
	if len(ids) == 0 {
		return []model.Product{}, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM products WHERE id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	query = ext.Rebind(query)

	var products []model.Product
	if err := sqlx.SelectContext(ctx, ext, &products, query, args...); err != nil {
		return nil, err
	}
	return products, nil
}

// Reserve is the one hot mutation in the engine. The decrement is a single
// guarded UPDATE, so concurrent checkouts against the same product serialize
// at the store's row lock and can never drive stock below zero.
func (r *PGRepository) Reserve(ctx context.Context, ext sqlx.ExtContext, productID string, qty int) (*model.StockReservation, error) {
	if qty <= 0 {
		return nil, model.ErrInvalidQuantity
	}

	query := ext.Rebind(`
        UPDATE products
        SET stock = stock - ?, updated_at = ?
        WHERE id = ? AND status = ? AND stock >= ?
    `)
	res, err := ext.ExecContext(ctx, query, qty, time.Now().UTC(), productID, model.ProductActive, qty)
	if err != nil {
		return nil, fmt.Errorf("reserve stock for %s: %w", productID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, r.reservationFailure(ctx, ext, productID)
	}

	var remaining int
	if err := sqlx.GetContext(ctx, ext, &remaining,
		ext.Rebind(`SELECT stock FROM products WHERE id = ?`), productID); err != nil {
		return nil, err
	}

	rsv := &model.StockReservation{
		ProductID: productID,
		Quantity:  qty,
		Remaining: remaining,
	}

	if remaining == 0 {
		sold := ext.Rebind(`UPDATE products SET status = ?, updated_at = ? WHERE id = ? AND status = ?`)
		if _, err := ext.ExecContext(ctx, sold, model.ProductSold, time.Now().UTC(), productID, model.ProductActive); err != nil {
			return nil, fmt.Errorf("mark product %s sold: %w", productID, err)
		}
		rsv.SoldOut = true
	}

	return rsv, nil
}

// reservationFailure re-reads the row inside the same transaction to turn a
// zero-row UPDATE into the specific typed failure.
func (r *PGRepository) reservationFailure(ctx context.Context, ext sqlx.ExtContext, productID string) error {
	var row struct {
		Stock  int                 `db:"stock"`
		Status model.ProductStatus `db:"status"`
	}
	err := sqlx.GetContext(ctx, ext, &row,
		ext.Rebind(`SELECT stock, status FROM products WHERE id = ?`), productID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrProductNotFound
	}
	if err != nil {
		return err
	}
	if row.Status != model.ProductActive {
		return model.ErrProductUnavailable
	}
	return model.ErrOutOfStock
}
