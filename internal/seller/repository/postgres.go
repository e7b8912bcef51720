package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/altave/settlement-service/internal/model"
)

var ErrSellerNotFound = errors.New("seller details not found")

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, d *model.SellerDetails) error {
	query := r.DB.Rebind(`
        INSERT INTO seller_details (user_id, plan, active_listings, payout_ref, updated_at)
        VALUES (?, ?, ?, ?, ?)
    `)
	_, err := r.DB.ExecContext(ctx, query, d.UserID, d.Plan, d.ActiveListings, d.PayoutRef, d.UpdatedAt)
	return err
}

func (r *PGRepository) GetByUserID(ctx context.Context, userID string) (*model.SellerDetails, error) {
	var d model.SellerDetails
	query := r.DB.Rebind(`SELECT * FROM seller_details WHERE user_id = ?`)
	if err := r.DB.GetContext(ctx, &d, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSellerNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *PGRepository) RecountActiveListings(ctx context.Context) (int64, error) {
	query := r.DB.Rebind(`
        UPDATE seller_details
        SET active_listings = (
            SELECT COUNT(*) FROM products p
            WHERE p.seller_id = seller_details.user_id AND p.status = ?
        ),
        updated_at = ?
    `)
	res, err := r.DB.ExecContext(ctx, query, model.ProductActive, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
