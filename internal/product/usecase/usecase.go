package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/altave/settlement-service/internal/model"
	"github.com/altave/settlement-service/internal/platform/cache"
	"github.com/altave/settlement-service/internal/product"
	"github.com/altave/settlement-service/internal/product/dto"
	"github.com/altave/settlement-service/internal/seller"
)

// listingCacheTTL is deliberately short: the cache serves read traffic only,
// and the settlement path always reads stock from the store. A stale cached
// stock figure can never oversell.
const listingCacheTTL = 30 * time.Second

type productUseCase struct {
	repo    product.Repository
	sellers seller.Repository
	cache   *cache.RedisClient // nil-safe
	logger  *zap.Logger
}

func NewProductUseCase(repo product.Repository, sellers seller.Repository, cache *cache.RedisClient, logger *zap.Logger) product.UseCase {
	return &productUseCase{
		repo:    repo,
		sellers: sellers,
		cache:   cache,
		logger:  logger,
	}
}

func (uc *productUseCase) CreateListing(ctx context.Context, input *dto.CreateListingInput) (*model.Product, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &model.Product{
		SellerID:    input.SellerID,
		Category:    input.Category,
		Title:       input.Title,
		Price:       input.Price,
		Stock:       input.Stock,
		Status:      model.ProductActive,
		DetailsJSON: string(input.Details),
	}
	p.ID = uuid.New().String()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := uc.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	uc.ensureSellerDetails(ctx, p.SellerID, now)

	uc.logger.Info("listing created",
		zap.String("product_id", p.ID),
		zap.String("seller_id", p.SellerID),
		zap.String("category", string(p.Category)))
	return p, nil
}

// cachedListing re-exposes the detail blob, which the public Product JSON
// hides, so a cache hit round-trips losslessly.
type cachedListing struct {
	model.Product
	DetailsJSON string `json:"details_json"`
}

func (uc *productUseCase) GetListing(ctx context.Context, id string) (*model.Product, error) {
	key := listingCacheKey(id)
	if uc.cache != nil {
		if val, err := uc.cache.Client.Get(ctx, key).Result(); err == nil {
			var c cachedListing
			if err := json.Unmarshal([]byte(val), &c); err == nil {
				p := c.Product
				p.DetailsJSON = c.DetailsJSON
				return &p, nil
			}
		}
	}

	p, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		raw, err := json.Marshal(cachedListing{Product: *p, DetailsJSON: p.DetailsJSON})
		if err == nil {
			if err := uc.cache.Client.Set(ctx, key, raw, listingCacheTTL).Err(); err != nil {
				uc.logger.Debug("listing cache write failed", zap.Error(err))
			}
		}
	}
	return p, nil
}

// ensureSellerDetails backfills the seller_details row on a seller's first
// listing. Sellers start on the free plan until they subscribe.
func (uc *productUseCase) ensureSellerDetails(ctx context.Context, sellerID string, now time.Time) {
	if _, err := uc.sellers.GetByUserID(ctx, sellerID); err == nil {
		return
	}
	details := &model.SellerDetails{
		UserID:    sellerID,
		Plan:      model.PlanFree,
		UpdatedAt: now,
	}
	if err := uc.sellers.Create(ctx, details); err != nil {
		uc.logger.Warn("could not create seller details",
			zap.String("seller_id", sellerID), zap.Error(err))
	}
}

func listingCacheKey(id string) string {
	return "product:listing:" + id
}
