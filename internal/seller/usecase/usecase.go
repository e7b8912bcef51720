package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/altave/settlement-service/internal/seller"
)

// Maintainer owns the derived seller projections. It runs beside the
// settlement path, never inside it, so checkout latency is independent of
// counter upkeep.
type Maintainer struct {
	repo     seller.Repository
	interval time.Duration
	logger   *zap.Logger
}

func NewMaintainer(repo seller.Repository, interval time.Duration, logger *zap.Logger) *Maintainer {
	return &Maintainer{repo: repo, interval: interval, logger: logger}
}

func (m *Maintainer) Start(ctx context.Context) {
	m.logger.Info("starting seller listing recount task", zap.Duration("interval", m.interval))
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("stopping seller listing recount task")
			return
		case <-ticker.C:
			n, err := m.repo.RecountActiveListings(ctx)
			if err != nil {
				m.logger.Error("listing recount failed", zap.Error(err))
				continue
			}
			m.logger.Debug("listing counters recomputed", zap.Int64("sellers", n))
		}
	}
}
