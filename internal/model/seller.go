package model

import "time"

type SellerPlan string

const (
	PlanFree         SellerPlan = "free"
	PlanRetailSub    SellerPlan = "retail_sub"
	PlanWholesaleSub SellerPlan = "wholesale_sub"
)

func (p SellerPlan) Valid() bool {
	switch p {
	case PlanFree, PlanRetailSub, PlanWholesaleSub:
		return true
	}
	return false
}

// SellerDetails is the one-to-one extension of a seller User.
// ActiveListings is a derived counter recomputed by the seller maintenance
// task; it is never written on the settlement path.
type SellerDetails struct {
	UserID         string     `db:"user_id" json:"user_id"`
	Plan           SellerPlan `db:"plan" json:"plan"`
	ActiveListings int        `db:"active_listings" json:"active_listings"`
	PayoutRef      string     `db:"payout_ref" json:"payout_ref"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
