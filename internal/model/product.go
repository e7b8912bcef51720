package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrProductNotFound    = errors.New("product not found")
	ErrProductUnavailable = errors.New("product is not available for purchase")
	ErrOutOfStock         = errors.New("insufficient stock")
	ErrInvalidListing     = errors.New("invalid product listing")
)

type ProductCategory string

const (
	CategoryHandset        ProductCategory = "handset"
	CategoryAccessory      ProductCategory = "accessory"
	CategoryServiceVoucher ProductCategory = "service_voucher"
)

func (c ProductCategory) Valid() bool {
	switch c {
	case CategoryHandset, CategoryAccessory, CategoryServiceVoucher:
		return true
	}
	return false
}

// SingleUnit reports whether the category carries exactly one physical unit
// per listing: a handset is listed, sold and settled as one device.
func (c ProductCategory) SingleUnit() bool {
	return c == CategoryHandset
}

type ProductStatus string

const (
	ProductActive      ProductStatus = "active"
	ProductSold        ProductStatus = "sold"
	ProductDraft       ProductStatus = "draft"
	ProductUnderReview ProductStatus = "under_review"
)

type Product struct {
	BaseModel
	SellerID    string          `db:"seller_id" json:"seller_id"`
	Category    ProductCategory `db:"category" json:"category"`
	Title       string          `db:"title" json:"title"`
	Price       float64         `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
	Status      ProductStatus   `db:"status" json:"status"`
	DetailsJSON string          `db:"details_json" json:"-"`
}

// HandsetDetails, AccessoryDetails and ServiceVoucherDetails are the concrete
// shapes of the per-category detail blob. Exactly one of them applies to a
// product, keyed by its Category.
type HandsetDetails struct {
	Brand     string `json:"brand"`
	Model     string `json:"model"`
	StorageGB int    `json:"storage_gb"`
	Condition string `json:"condition"`
}

type AccessoryDetails struct {
	Brand          string `json:"brand"`
	CompatibleWith string `json:"compatible_with"`
}

type ServiceVoucherDetails struct {
	Provider  string `json:"provider"`
	ValidDays int    `json:"valid_days"`
}

// Details decodes the detail blob into the shape dictated by the product
// category.
func (p *Product) Details() (any, error) {
	if p.DetailsJSON == "" {
		return nil, nil
	}
	var out any
	switch p.Category {
	case CategoryHandset:
		out = &HandsetDetails{}
	case CategoryAccessory:
		out = &AccessoryDetails{}
	case CategoryServiceVoucher:
		out = &ServiceVoucherDetails{}
	default:
		return nil, fmt.Errorf("unknown product category %q", p.Category)
	}
	if err := json.Unmarshal([]byte(p.DetailsJSON), out); err != nil {
		return nil, fmt.Errorf("decode %s details: %w", p.Category, err)
	}
	return out, nil
}

// StockReservation records the outcome of a single atomic stock decrement.
type StockReservation struct {
	ProductID string
	Quantity  int
	Remaining int
	SoldOut   bool
}
