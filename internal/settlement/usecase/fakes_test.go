package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/altave/settlement-service/internal/gateway"
	"github.com/altave/settlement-service/internal/model"
)

var errNoSeller = errors.New("seller details not found")

// memStore is an in-memory stand-in for the three repositories the
// orchestrator touches. WithinTx serializes units of work and rolls back the
// product state and inserted rows on error, mirroring the database boundary.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	products map[string]*model.Product
	sellers  map[string]*model.SellerDetails
	txns     map[string]*model.Transaction
	items    map[string][]model.TransactionItem
	events   map[string]bool

	inserted       []string
	insertedEvents []string
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[string]*model.Product),
		sellers:  make(map[string]*model.SellerDetails),
		txns:     make(map[string]*model.Transaction),
		items:    make(map[string][]model.TransactionItem),
		events:   make(map[string]bool),
	}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(ext sqlx.ExtContext) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := make(map[string]model.Product, len(s.products))
	for id, p := range s.products {
		snapshot[id] = *p
	}
	s.inserted = s.inserted[:0]
	s.insertedEvents = s.insertedEvents[:0]
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		for id := range s.products {
			p := snapshot[id]
			s.products[id] = &p
		}
		for _, id := range s.inserted {
			delete(s.txns, id)
			delete(s.items, id)
		}
		for _, id := range s.insertedEvents {
			delete(s.events, id)
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) InsertTransaction(ctx context.Context, ext sqlx.ExtContext, txn *model.Transaction, items []model.TransactionItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *txn
	s.txns[txn.ID] = &cp
	s.items[txn.ID] = append([]model.TransactionItem(nil), items...)
	s.inserted = append(s.inserted, txn.ID)
	return nil
}

func (s *memStore) GetByID(ctx context.Context, ext sqlx.ExtContext, id string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[id]
	if !ok {
		return nil, model.ErrTransactionNotFound
	}
	cp := *txn
	return &cp, nil
}

func (s *memStore) GetItems(ctx context.Context, transactionID string) ([]model.TransactionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TransactionItem(nil), s.items[transactionID]...), nil
}

func (s *memStore) SetChargeID(ctx context.Context, ext sqlx.ExtContext, transactionID, chargeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[transactionID]
	if !ok || txn.ChargeID != nil {
		return false, nil
	}
	txn.ChargeID = &chargeID
	return true, nil
}

func (s *memStore) ReleaseEscrow(ctx context.Context, ext sqlx.ExtContext, transactionID string, releaseDate time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[transactionID]
	if !ok || txn.EscrowStatus != model.EscrowHeld {
		return false, nil
	}
	txn.EscrowStatus = model.EscrowReleased
	txn.ReleaseDate = &releaseDate
	return true, nil
}

func (s *memStore) DisputeEscrow(ctx context.Context, ext sqlx.ExtContext, transactionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[transactionID]
	if !ok || txn.EscrowStatus != model.EscrowHeld {
		return false, nil
	}
	txn.EscrowStatus = model.EscrowDisputed
	return true, nil
}

func (s *memStore) MarkPayoutPaid(ctx context.Context, ext sqlx.ExtContext, transactionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[transactionID]
	if !ok || txn.PayoutStatus != model.PayoutPending || txn.EscrowStatus != model.EscrowReleased {
		return false, nil
	}
	txn.PayoutStatus = model.PayoutPaid
	return true, nil
}

func (s *memStore) MarkPayoutFailed(ctx context.Context, ext sqlx.ExtContext, transactionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[transactionID]
	if !ok || txn.PayoutStatus != model.PayoutPending {
		return false, nil
	}
	txn.PayoutStatus = model.PayoutFailed
	return true, nil
}

func (s *memStore) RecordEvent(ctx context.Context, ext sqlx.ExtContext, ev *gateway.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events[ev.ID] {
		return false, nil
	}
	s.events[ev.ID] = true
	s.insertedEvents = append(s.insertedEvents, ev.ID)
	return true, nil
}

func (s *memStore) ListAutoReleasable(ctx context.Context, heldBefore time.Time, limit int) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Transaction
	for _, txn := range s.txns {
		if txn.EscrowStatus == model.EscrowHeld && txn.ChargeID != nil && txn.PurchaseDate.Before(heldBefore) {
			out = append(out, *txn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchaseDate.Before(out[j].PurchaseDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ListPayoutRetries(ctx context.Context, releasedBefore time.Time, limit int) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Transaction
	for _, txn := range s.txns {
		if txn.EscrowStatus == model.EscrowReleased && txn.PayoutStatus == model.PayoutPending &&
			txn.ReleaseDate != nil && txn.ReleaseDate.Before(releasedBefore) {
			out = append(out, *txn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReleaseDate.Before(*out[j].ReleaseDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CountUncharged(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, txn := range s.txns {
		if txn.ChargeID == nil && txn.PurchaseDate.Before(olderThan) {
			n++
		}
	}
	return n, nil
}

// Seed and inspection helpers for tests.

func (s *memStore) addProduct(p *model.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.products[p.ID] = &cp
}

func (s *memStore) addSeller(d *model.SellerDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.sellers[d.UserID] = &cp
}

func (s *memStore) getProduct(id string) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[id]; ok {
		return *p
	}
	return model.Product{}
}

// flakyStore fails a configured number of dispute transitions before
// delegating, standing in for a store that drops a connection mid-delivery.
type flakyStore struct {
	*memStore
	disputeFailures int
}

func (s *flakyStore) DisputeEscrow(ctx context.Context, ext sqlx.ExtContext, transactionID string) (bool, error) {
	if s.disputeFailures > 0 {
		s.disputeFailures--
		return false, errors.New("driver: bad connection")
	}
	return s.memStore.DisputeEscrow(ctx, ext, transactionID)
}

// memProducts adapts the store to product.Repository. A separate type
// because the store's transaction GetByID shadows the product one.
type memProducts struct {
	s *memStore
}

func (r *memProducts) Create(ctx context.Context, p *model.Product) error {
	r.s.addProduct(p)
	return nil
}

func (r *memProducts) GetByID(ctx context.Context, id string) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, model.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProducts) GetForSettlement(ctx context.Context, ext sqlx.ExtContext, ids []string) ([]model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Product
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memProducts) Reserve(ctx context.Context, ext sqlx.ExtContext, productID string, qty int) (*model.StockReservation, error) {
	if qty <= 0 {
		return nil, model.ErrInvalidQuantity
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[productID]
	if !ok {
		return nil, model.ErrProductNotFound
	}
	if p.Status != model.ProductActive {
		return nil, model.ErrProductUnavailable
	}
	if p.Stock < qty {
		return nil, model.ErrOutOfStock
	}
	p.Stock -= qty
	rsv := &model.StockReservation{ProductID: productID, Quantity: qty, Remaining: p.Stock}
	if p.Stock == 0 {
		p.Status = model.ProductSold
		rsv.SoldOut = true
	}
	return rsv, nil
}

// memSellers adapts the store to seller.Repository.
type memSellers struct {
	s *memStore
}

func (r *memSellers) Create(ctx context.Context, d *model.SellerDetails) error {
	r.s.addSeller(d)
	return nil
}

func (r *memSellers) GetByUserID(ctx context.Context, userID string) (*model.SellerDetails, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.sellers[userID]
	if !ok {
		return nil, errNoSeller
	}
	cp := *d
	return &cp, nil
}

func (r *memSellers) RecountActiveListings(ctx context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := make(map[string]int)
	for _, p := range r.s.products {
		if p.Status == model.ProductActive {
			counts[p.SellerID]++
		}
	}
	var updated int64
	for userID, d := range r.s.sellers {
		d.ActiveListings = counts[userID]
		updated++
	}
	return updated, nil
}

type payoutCall struct {
	Ref    string
	Amount float64
}

// fakeGateway records charge and payout attempts and fails on demand.
type fakeGateway struct {
	mu        sync.Mutex
	chargeErr error
	payoutErr error
	charges   []float64
	payouts   []payoutCall
}

func (g *fakeGateway) Charge(ctx context.Context, buyerPaymentRef string, amount float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chargeErr != nil {
		return "", g.chargeErr
	}
	g.charges = append(g.charges, amount)
	return fmt.Sprintf("ch_%d", len(g.charges)), nil
}

func (g *fakeGateway) Payout(ctx context.Context, payoutRef string, amount float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.payoutErr != nil {
		return g.payoutErr
	}
	g.payouts = append(g.payouts, payoutCall{Ref: payoutRef, Amount: amount})
	return nil
}

func (g *fakeGateway) payoutCalls() []payoutCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payoutCall(nil), g.payouts...)
}

type publishedEvent struct {
	Key   string
	Event any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Key: key, Event: event})
	return nil
}

func (p *fakePublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}
