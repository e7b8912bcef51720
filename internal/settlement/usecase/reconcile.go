package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/altave/settlement-service/internal/gateway"
	"github.com/altave/settlement-service/internal/model"
	"github.com/altave/settlement-service/internal/platform/cache"
	"github.com/altave/settlement-service/internal/seller"
	"github.com/altave/settlement-service/internal/settlement"
)

const (
	sweepBatchSize = 100
	sweepLockKey   = "settlement:sweep:lock"
)

// Sweeper is the reconciliation loop. It auto-releases escrows held past the
// configured window, re-initiates payouts stuck pending after release, and
// flags transactions whose charge never confirmed. It never rolls anything
// back; unknown charge outcomes are resolved by webhooks, not by the sweep.
type Sweeper struct {
	repo    settlement.Repository
	uc      settlement.UseCase
	gw      gateway.Gateway
	sellers seller.Repository
	locks   *cache.RedisClient // nil-safe
	id      string
	opts    Options
	logger  *zap.Logger
}

func NewSweeper(repo settlement.Repository, uc settlement.UseCase, gw gateway.Gateway, sellers seller.Repository, locks *cache.RedisClient, opts Options, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		repo:    repo,
		uc:      uc,
		gw:      gw,
		sellers: sellers,
		locks:   locks,
		id:      uuid.NewString(),
		opts:    opts,
		logger:  logger,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("starting settlement reconciliation sweep",
		zap.Duration("interval", s.opts.SweepInterval),
		zap.Duration("auto_release", s.opts.EscrowAutoRelease))
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping settlement reconciliation sweep")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

func (s *Sweeper) Sweep(ctx context.Context) {
	if s.locks != nil {
		// one sweep across all replicas per interval; payout retries are
		// safe to repeat but pointless to run twice at once
		ok, err := s.locks.AcquireLock(ctx, sweepLockKey, s.id, s.opts.SweepInterval)
		if err != nil {
			s.logger.Warn("sweep lock unavailable, sweeping anyway", zap.Error(err))
		} else if !ok {
			return
		} else {
			defer func() {
				if err := s.locks.ReleaseLock(ctx, sweepLockKey, s.id); err != nil {
					s.logger.Debug("sweep lock release failed", zap.Error(err))
				}
			}()
		}
	}

	now := time.Now().UTC()
	s.autoRelease(ctx, now)
	s.retryPayouts(ctx, now)
	s.flagUncharged(ctx, now)
}

func (s *Sweeper) autoRelease(ctx context.Context, now time.Time) {
	cutoff := now.Add(-s.opts.EscrowAutoRelease)
	held, err := s.repo.ListAutoReleasable(ctx, cutoff, sweepBatchSize)
	if err != nil {
		s.logger.Error("sweep: listing auto-releasable escrows failed", zap.Error(err))
		return
	}
	for _, txn := range held {
		if _, err := s.uc.Release(ctx, txn.ID); err != nil {
			// a concurrent dispute or manual release got there first
			if errors.Is(err, model.ErrInvalidEscrowTransition) {
				continue
			}
			s.logger.Error("sweep: auto-release failed",
				zap.String("transaction_id", txn.ID), zap.Error(err))
			continue
		}
		s.logger.Info("sweep: escrow auto-released",
			zap.String("transaction_id", txn.ID),
			zap.Time("purchase_date", txn.PurchaseDate))
	}
}

func (s *Sweeper) retryPayouts(ctx context.Context, now time.Time) {
	cutoff := now.Add(-s.opts.SweepInterval)
	stuck, err := s.repo.ListPayoutRetries(ctx, cutoff, sweepBatchSize)
	if err != nil {
		s.logger.Error("sweep: listing stuck payouts failed", zap.Error(err))
		return
	}
	for _, txn := range stuck {
		payoutRef := txn.SellerID
		if details, err := s.sellers.GetByUserID(ctx, txn.SellerID); err == nil && details.PayoutRef != "" {
			payoutRef = details.PayoutRef
		}

		payoutCtx, cancel := context.WithTimeout(ctx, s.opts.PayoutTimeout)
		err := s.gw.Payout(payoutCtx, payoutRef, txn.NetPayout)
		cancel()
		if err != nil {
			s.logger.Warn("sweep: payout retry failed",
				zap.String("transaction_id", txn.ID), zap.Error(err))
		}
	}
}

// flagUncharged only reports; retrying a charge whose outcome is unknown
// could double-charge the buyer.
func (s *Sweeper) flagUncharged(ctx context.Context, now time.Time) {
	cutoff := now.Add(-s.opts.EscrowAutoRelease)
	n, err := s.repo.CountUncharged(ctx, cutoff)
	if err != nil {
		s.logger.Error("sweep: counting uncharged transactions failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Warn("sweep: transactions without confirmed charge need manual review",
			zap.Int("count", n))
	}
}
