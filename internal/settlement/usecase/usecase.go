package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/altave/settlement-service/internal/commission"
	"github.com/altave/settlement-service/internal/gateway"
	"github.com/altave/settlement-service/internal/model"
	"github.com/altave/settlement-service/internal/platform/broker"
	"github.com/altave/settlement-service/internal/platform/cache"
	"github.com/altave/settlement-service/internal/product"
	"github.com/altave/settlement-service/internal/seller"
	"github.com/altave/settlement-service/internal/settlement"
	"github.com/altave/settlement-service/internal/settlement/dto"
)

// Options are the policy knobs of the orchestrator, supplied from config.
type Options struct {
	ChargeTimeout     time.Duration
	PayoutTimeout     time.Duration
	EscrowAutoRelease time.Duration
	SweepInterval     time.Duration
}

type settlementUseCase struct {
	repo     settlement.Repository
	products product.Repository
	sellers  seller.Repository
	calc     *commission.Calculator
	gw       gateway.Gateway
	events   broker.Publisher   // nil-safe
	dedup    *cache.RedisClient // nil-safe
	opts     Options
	logger   *zap.Logger
}

func NewSettlementUseCase(
	repo settlement.Repository,
	products product.Repository,
	sellers seller.Repository,
	calc *commission.Calculator,
	gw gateway.Gateway,
	events broker.Publisher,
	dedup *cache.RedisClient,
	opts Options,
	logger *zap.Logger,
) settlement.UseCase {
	return &settlementUseCase{
		repo:     repo,
		products: products,
		sellers:  sellers,
		calc:     calc,
		gw:       gw,
		events:   events,
		dedup:    dedup,
		opts:     opts,
		logger:   logger,
	}
}

// Checkout is the settlement sequence: build the transaction atomically,
// charge the gateway, store the charge id. The committed transaction is
// never rolled back once the gateway has been contacted; an unknown charge
// outcome is reconciled asynchronously instead of risking a double charge.
func (uc *settlementUseCase) Checkout(ctx context.Context, input *dto.CheckoutInput) (*dto.CheckoutResult, error) {
	if err := input.Normalize(); err != nil {
		return nil, err
	}

	plan := uc.sellerPlan(ctx, input.SellerID)

	txn, items, err := uc.build(ctx, input, plan)
	if err != nil {
		return nil, err
	}

	result := &dto.CheckoutResult{Transaction: txn, Items: items, Payment: dto.PaymentProcessing}

	chargeCtx, cancel := context.WithTimeout(ctx, uc.opts.ChargeTimeout)
	defer cancel()

	chargeID, err := uc.gw.Charge(chargeCtx, input.PaymentRef, txn.TotalAmount)
	switch {
	case err == nil:
		if _, err := uc.repo.SetChargeID(ctx, nil, txn.ID, chargeID); err != nil {
			uc.logger.Error("failed to store charge id",
				zap.String("transaction_id", txn.ID), zap.Error(err))
		} else {
			txn.ChargeID = &chargeID
			result.Payment = dto.PaymentCharged
		}
	case errors.Is(err, gateway.ErrChargeDeclined):
		// The transaction row stays for audit and reconciliation; the caller
		// gets the typed decline.
		uc.logger.Warn("gateway declined charge",
			zap.String("transaction_id", txn.ID), zap.String("buyer_id", txn.BuyerID))
		return nil, model.ErrPaymentDeclined
	default:
		// Outcome unknown. Leave held/pending; the sweep or a webhook
		// resolves it (never speculatively rolled back).
		uc.logger.Warn("charge outcome unknown, leaving transaction for reconciliation",
			zap.String("transaction_id", txn.ID), zap.Error(err))
	}

	uc.publish(ctx, settlement.EventTransactionCreated, txn.ID, txn)
	return result, nil
}

// build is the transaction builder: one unit of work covering seller
// validation, stock reservation, snapshotting and row insertion.
func (uc *settlementUseCase) build(ctx context.Context, input *dto.CheckoutInput, plan model.SellerPlan) (*model.Transaction, []model.TransactionItem, error) {
	var (
		txn   *model.Transaction
		items []model.TransactionItem
	)

	err := uc.repo.WithinTx(ctx, func(ext sqlx.ExtContext) error {
		ids := make([]string, 0, len(input.Items))
		for _, it := range input.Items {
			ids = append(ids, it.ProductID)
		}

		products, err := uc.products.GetForSettlement(ctx, ext, ids)
		if err != nil {
			return err
		}
		byID := make(map[string]*model.Product, len(products))
		for i := range products {
			byID[products[i].ID] = &products[i]
		}

		txnID := uuid.NewString()
		now := time.Now().UTC()
		lines := make([]commission.LineItem, 0, len(input.Items))
		items = items[:0]

		for _, it := range input.Items {
			p, ok := byID[it.ProductID]
			if !ok {
				return model.ErrProductNotFound
			}
			if p.SellerID != input.SellerID {
				return model.ErrCrossSellerCart
			}
			if p.Category.SingleUnit() && it.Quantity > 1 {
				return model.ErrInvalidQuantity
			}

			if _, err := uc.products.Reserve(ctx, ext, p.ID, it.Quantity); err != nil {
				return err
			}

			// snapshot title and price; later product edits never reach
			// these rows
			items = append(items, model.TransactionItem{
				ID:            uuid.NewString(),
				TransactionID: txnID,
				ProductID:     p.ID,
				ProductTitle:  p.Title,
				Quantity:      it.Quantity,
				UnitPrice:     p.Price,
				TotalPrice:    p.Price * float64(it.Quantity),
			})
			lines = append(lines, commission.LineItem{UnitPrice: p.Price, Quantity: it.Quantity})
		}

		totals := uc.calc.Compute(lines, plan)
		txn = &model.Transaction{
			ID:            txnID,
			BuyerID:       input.BuyerID,
			SellerID:      input.SellerID,
			TotalAmount:   totals.TotalAmount,
			CommissionFee: totals.CommissionFee,
			NetPayout:     totals.NetPayout,
			EscrowStatus:  model.EscrowHeld,
			PayoutStatus:  model.PayoutPending,
			PurchaseDate:  now,
		}

		return uc.repo.InsertTransaction(ctx, ext, txn, items)
	})
	if err != nil {
		return nil, nil, err
	}
	return txn, items, nil
}

func (uc *settlementUseCase) Release(ctx context.Context, transactionID string) (*model.Transaction, error) {
	txn, err := uc.repo.GetByID(ctx, nil, transactionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := txn.ReleaseEscrow(now); err != nil {
		return nil, err
	}

	changed, err := uc.repo.ReleaseEscrow(ctx, nil, txn.ID, *txn.ReleaseDate)
	if err != nil {
		return nil, err
	}
	if !changed {
		// lost the race against another release or a dispute
		return nil, model.ErrInvalidEscrowTransition
	}

	uc.publish(ctx, settlement.EventEscrowReleased, txn.ID, txn)
	uc.initiatePayout(ctx, txn)
	return txn, nil
}

func (uc *settlementUseCase) Dispute(ctx context.Context, transactionID string) (*model.Transaction, error) {
	txn, err := uc.repo.GetByID(ctx, nil, transactionID)
	if err != nil {
		return nil, err
	}
	if err := txn.DisputeEscrow(); err != nil {
		return nil, err
	}

	changed, err := uc.repo.DisputeEscrow(ctx, nil, txn.ID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, model.ErrInvalidEscrowTransition
	}

	uc.publish(ctx, settlement.EventEscrowDisputed, txn.ID, txn)
	return txn, nil
}

func (uc *settlementUseCase) Get(ctx context.Context, transactionID string) (*model.Transaction, []model.TransactionItem, error) {
	txn, err := uc.repo.GetByID(ctx, nil, transactionID)
	if err != nil {
		return nil, nil, err
	}
	items, err := uc.repo.GetItems(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	return txn, items, nil
}

// HandleGatewayEvent applies one webhook delivery. Processing is idempotent
// per event id: the durable gateway_events insert is the authority, redis is
// only a fast path, and every transition is a no-op when the target state is
// already in place. The event record and the state change share one unit of
// work, so a transition that fails after the id is recorded rolls the record
// back and the at-least-once redelivery is processed fresh instead of being
// acked as a duplicate.
func (uc *settlementUseCase) HandleGatewayEvent(ctx context.Context, ev *gateway.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	if uc.dedup != nil {
		if seen, err := uc.dedup.EventSeen(ctx, ev.ID); err == nil && seen {
			return nil
		}
	}

	fresh := false
	err := uc.repo.WithinTx(ctx, func(ext sqlx.ExtContext) error {
		var err error
		fresh, err = uc.repo.RecordEvent(ctx, ext, ev)
		if err != nil || !fresh {
			return err
		}
		return uc.applyEvent(ctx, ext, ev)
	})
	if err != nil {
		return err
	}
	if !fresh {
		uc.logger.Debug("duplicate gateway event ignored", zap.String("event_id", ev.ID))
		return nil
	}

	if uc.dedup != nil {
		if err := uc.dedup.MarkEventSeen(ctx, ev.ID, 24*time.Hour); err != nil {
			uc.logger.Debug("event dedup cache write failed", zap.Error(err))
		}
	}
	return nil
}

func (uc *settlementUseCase) applyEvent(ctx context.Context, ext sqlx.ExtContext, ev *gateway.Event) error {
	switch ev.Type {
	case gateway.EventChargeCaptured:
		// escrow is already held at creation; just backfill the charge id
		// if the synchronous path never stored it
		if ev.ChargeID != "" {
			if _, err := uc.repo.SetChargeID(ctx, ext, ev.TransactionID, ev.ChargeID); err != nil {
				return err
			}
		}
		return nil

	case gateway.EventChargeDisputed:
		changed, err := uc.repo.DisputeEscrow(ctx, ext, ev.TransactionID)
		if err != nil {
			return err
		}
		if changed {
			uc.publish(ctx, settlement.EventEscrowDisputed, ev.TransactionID, ev)
			return nil
		}
		return uc.noopOrInvalid(ctx, ext, ev.TransactionID, func(t *model.Transaction) error {
			if t.EscrowStatus == model.EscrowDisputed {
				return nil
			}
			return model.ErrInvalidEscrowTransition
		})

	case gateway.EventPayoutPaid:
		changed, err := uc.repo.MarkPayoutPaid(ctx, ext, ev.TransactionID)
		if err != nil {
			return err
		}
		if changed {
			uc.publish(ctx, settlement.EventPayoutPaid, ev.TransactionID, ev)
			return nil
		}
		return uc.noopOrInvalid(ctx, ext, ev.TransactionID, func(t *model.Transaction) error {
			if t.PayoutStatus == model.PayoutPaid {
				return nil
			}
			if t.EscrowStatus != model.EscrowReleased {
				return model.ErrEscrowNotReleased
			}
			return model.ErrInvalidPayoutTransition
		})

	case gateway.EventPayoutFailed:
		changed, err := uc.repo.MarkPayoutFailed(ctx, ext, ev.TransactionID)
		if err != nil {
			return err
		}
		if changed {
			uc.logger.Warn("payout failed, flagged for reconciliation",
				zap.String("transaction_id", ev.TransactionID), zap.String("reason", ev.Reason))
			uc.publish(ctx, settlement.EventPayoutFailed, ev.TransactionID, ev)
			return nil
		}
		return uc.noopOrInvalid(ctx, ext, ev.TransactionID, func(t *model.Transaction) error {
			if t.PayoutStatus == model.PayoutFailed {
				return nil
			}
			return model.ErrInvalidPayoutTransition
		})
	}
	return nil
}

// noopOrInvalid reloads the row after a guarded update changed nothing and
// decides whether that was an idempotent re-apply or a real violation. A
// violation rolls the enclosing unit of work back, event record included.
func (uc *settlementUseCase) noopOrInvalid(ctx context.Context, ext sqlx.ExtContext, transactionID string, check func(*model.Transaction) error) error {
	txn, err := uc.repo.GetByID(ctx, ext, transactionID)
	if err != nil {
		return err
	}
	return check(txn)
}

// initiatePayout asks the gateway to move the net proceeds. Confirmation
// arrives as a payout webhook; a synchronous failure just leaves the payout
// pending for the sweep to retry.
func (uc *settlementUseCase) initiatePayout(ctx context.Context, txn *model.Transaction) {
	payoutRef := txn.SellerID
	if details, err := uc.sellers.GetByUserID(ctx, txn.SellerID); err == nil && details.PayoutRef != "" {
		payoutRef = details.PayoutRef
	}

	payoutCtx, cancel := context.WithTimeout(ctx, uc.opts.PayoutTimeout)
	defer cancel()

	if err := uc.gw.Payout(payoutCtx, payoutRef, txn.NetPayout); err != nil {
		uc.logger.Warn("payout initiation failed, will retry on sweep",
			zap.String("transaction_id", txn.ID), zap.Error(err))
	}
}

// sellerPlan resolves the commission plan; sellers without a details row are
// charged the free rate.
func (uc *settlementUseCase) sellerPlan(ctx context.Context, sellerID string) model.SellerPlan {
	details, err := uc.sellers.GetByUserID(ctx, sellerID)
	if err != nil || !details.Plan.Valid() {
		return model.PlanFree
	}
	return details.Plan
}

func (uc *settlementUseCase) publish(ctx context.Context, eventType, key string, payload any) {
	if uc.events == nil {
		return
	}
	ev := settlement.Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	if err := uc.events.Publish(ctx, key, ev); err != nil {
		uc.logger.Error("failed to publish settlement event",
			zap.String("event_type", eventType), zap.Error(err))
	}
}
