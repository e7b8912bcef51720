package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/altave/settlement-service/internal/commission"
	"github.com/altave/settlement-service/internal/model"
	"github.com/altave/settlement-service/internal/settlement"
	"github.com/altave/settlement-service/internal/settlement/dto"
)

func newTestSweeper(t *testing.T) (*Sweeper, settlement.UseCase, *memStore, *fakeGateway) {
	t.Helper()
	store := newMemStore()
	gw := &fakeGateway{}
	calc := commission.NewCalculator(map[model.SellerPlan]float64{model.PlanFree: 0.10})
	opts := Options{
		ChargeTimeout:     time.Second,
		PayoutTimeout:     time.Second,
		EscrowAutoRelease: 7 * 24 * time.Hour,
		SweepInterval:     time.Minute,
	}
	uc := NewSettlementUseCase(store, &memProducts{store}, &memSellers{store}, calc, gw, nil, nil, opts, zap.NewNop())
	return NewSweeper(store, uc, gw, &memSellers{store}, nil, opts, zap.NewNop()), uc, store, gw
}

func checkoutOne(t *testing.T, uc settlement.UseCase, store *memStore, sellerID string) *model.Transaction {
	t.Helper()
	p := seedProduct(store, sellerID, model.CategoryAccessory, 100.00, 5)
	res, err := uc.Checkout(context.Background(), &dto.CheckoutInput{
		BuyerID:    uuid.NewString(),
		SellerID:   sellerID,
		PaymentRef: "card_123",
		Items:      []dto.ItemInput{{ProductID: p.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	return res.Transaction
}

func backdatePurchase(store *memStore, transactionID string, by time.Duration) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.txns[transactionID].PurchaseDate = time.Now().UTC().Add(-by)
}

func backdateRelease(store *memStore, transactionID string, by time.Duration) {
	store.mu.Lock()
	defer store.mu.Unlock()
	rd := time.Now().UTC().Add(-by)
	store.txns[transactionID].ReleaseDate = &rd
}

func TestSweepAutoReleasesExpiredEscrows(t *testing.T) {
	sweeper, uc, store, gw := newTestSweeper(t)
	ctx := context.Background()
	sellerID := seedSeller(store, model.PlanFree)

	old := checkoutOne(t, uc, store, sellerID)
	fresh := checkoutOne(t, uc, store, sellerID)
	backdatePurchase(store, old.ID, 8*24*time.Hour)

	sweeper.Sweep(ctx)

	released, err := store.GetByID(ctx, nil, old.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowReleased, released.EscrowStatus)
	require.NotNil(t, released.ReleaseDate)

	held, err := store.GetByID(ctx, nil, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowHeld, held.EscrowStatus, "escrow inside the window stays held")

	calls := gw.payoutCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, released.NetPayout, calls[0].Amount)
}

func TestSweepSkipsDisputedEscrows(t *testing.T) {
	sweeper, uc, store, _ := newTestSweeper(t)
	ctx := context.Background()
	sellerID := seedSeller(store, model.PlanFree)

	txn := checkoutOne(t, uc, store, sellerID)
	backdatePurchase(store, txn.ID, 8*24*time.Hour)
	_, err := uc.Dispute(ctx, txn.ID)
	require.NoError(t, err)

	sweeper.Sweep(ctx)

	got, err := store.GetByID(ctx, nil, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowDisputed, got.EscrowStatus)
	assert.Equal(t, model.PayoutPending, got.PayoutStatus)
}

func TestSweepRetriesStuckPayouts(t *testing.T) {
	sweeper, uc, store, gw := newTestSweeper(t)
	ctx := context.Background()
	sellerID := seedSeller(store, model.PlanFree)

	txn := checkoutOne(t, uc, store, sellerID)
	_, err := uc.Release(ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, gw.payoutCalls(), 1)

	// the confirmation webhook never arrived; the payout is still pending
	backdateRelease(store, txn.ID, 10*time.Minute)

	sweeper.Sweep(ctx)

	calls := gw.payoutCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "acct_"+sellerID, calls[1].Ref)
	assert.Equal(t, txn.NetPayout, calls[1].Amount)
}

func TestSweepLeavesConfirmedPayoutsAlone(t *testing.T) {
	sweeper, uc, store, gw := newTestSweeper(t)
	ctx := context.Background()
	sellerID := seedSeller(store, model.PlanFree)

	txn := checkoutOne(t, uc, store, sellerID)
	_, err := uc.Release(ctx, txn.ID)
	require.NoError(t, err)
	backdateRelease(store, txn.ID, 10*time.Minute)

	_, err = store.MarkPayoutPaid(ctx, nil, txn.ID)
	require.NoError(t, err)

	sweeper.Sweep(ctx)
	assert.Len(t, gw.payoutCalls(), 1, "paid payouts are never re-sent")
}

func TestSweepNeverRetriesCharges(t *testing.T) {
	sweeper, _, store, gw := newTestSweeper(t)
	ctx := context.Background()
	sellerID := seedSeller(store, model.PlanFree)

	// a transaction whose charge outcome is still unknown
	now := time.Now().UTC()
	txn := &model.Transaction{
		ID:           uuid.NewString(),
		BuyerID:      uuid.NewString(),
		SellerID:     sellerID,
		TotalAmount:  100.00,
		NetPayout:    90.00,
		EscrowStatus: model.EscrowHeld,
		PayoutStatus: model.PayoutPending,
		PurchaseDate: now.Add(-8 * 24 * time.Hour),
	}
	require.NoError(t, store.InsertTransaction(ctx, nil, txn, nil))

	sweeper.Sweep(ctx)

	// uncharged means no auto-release and, above all, no second charge
	got, err := store.GetByID(ctx, nil, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EscrowHeld, got.EscrowStatus)
	assert.Empty(t, gw.charges)
	assert.Empty(t, gw.payoutCalls())
}

func TestSweeperStopsOnContextCancel(t *testing.T) {
	sweeper, _, _, _ := newTestSweeper(t)
	sweeper.opts.SweepInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
}
