package service

import (
	"context"
	"errors"
	"github.com/rookgm/storefront/internal/models"
	"go.uber.org/zap"
	"time"
)

// max orders listed per sweep
const sweepBatch = 50

// StaleOrderRepository is interface for listing orders stuck waiting for payment
type StaleOrderRepository interface {
	// ListStaleProcessing returns processing orders not updated since before, least recently checked first
	ListStaleProcessing(ctx context.Context, before time.Time, limit uint64) ([]models.Order, error)
	// MarkChecked moves order to the end of the sweep queue
	MarkChecked(ctx context.Context, id int64) error
}

// StatusChecker asks provider about payment of an order
type StatusChecker interface {
	// Provider returns provider served by checker
	Provider() models.Provider
	// PaymentStatus returns payment state known to provider
	PaymentStatus(ctx context.Context, order *models.Order) (models.PaymentEvent, error)
}

// SweepService recovers orders whose webhook never arrived
type SweepService struct {
	orders     StaleOrderRepository
	checkers   map[models.Provider]StatusChecker
	reconciler *Reconciler
	carts      *CartService
	staleAfter time.Duration
	timeout    time.Duration
	logger     *zap.Logger
}

// NewSweepService creates new SweepService instance
func NewSweepService(orders StaleOrderRepository, reconciler *Reconciler, carts *CartService,
	staleAfter, timeout time.Duration, logger *zap.Logger, checkers ...StatusChecker) *SweepService {
	ch := make(map[models.Provider]StatusChecker, len(checkers))
	for _, c := range checkers {
		ch[c.Provider()] = c
	}
	return &SweepService{
		orders:     orders,
		checkers:   ch,
		reconciler: reconciler,
		carts:      carts,
		staleAfter: staleAfter,
		timeout:    timeout,
		logger:     logger,
	}
}

// GetStaleOrders writes stale processing orders to channel
func (ss *SweepService) GetStaleOrders(ctx context.Context, orderCh chan<- models.Order) error {
	orders, err := ss.orders.ListStaleProcessing(ctx, time.Now().Add(-ss.staleAfter), sweepBatch)
	if err != nil {
		return err
	}

	for _, order := range orders {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case orderCh <- order:
		}
	}

	return nil
}

// ReconcileStale asks provider about every order from channel and applies the answer
func (ss *SweepService) ReconcileStale(ctx context.Context, orderCh <-chan models.Order) {
	for {
		select {
		case <-ctx.Done():
			ss.logger.Debug("sweep is done")
			return
		case order, ok := <-orderCh:
			if !ok {
				return
			}
			if err := ss.reconcile(ctx, &order); err != nil {
				ss.logger.Error("sweep order",
					zap.Int64("order", order.ID),
					zap.Stringer("provider", order.PaymentProvider),
					zap.Error(err))
			}
			// inconclusive checks must not keep newer orders out of the batch
			if err := ss.orders.MarkChecked(ctx, order.ID); err != nil && ctx.Err() == nil {
				ss.logger.Warn("failed to mark order checked", zap.Int64("order", order.ID), zap.Error(err))
			}
		}
	}
}

func (ss *SweepService) reconcile(ctx context.Context, order *models.Order) error {
	checker, ok := ss.checkers[order.PaymentProvider]
	if !ok {
		return models.ErrUnknownProvider
	}

	providerCtx, cancel := context.WithTimeout(ctx, ss.timeout)
	ev, err := checker.PaymentStatus(providerCtx, order)
	cancel()
	if err != nil {
		return err
	}
	if ev.Outcome == models.OutcomeUnknown {
		ss.logger.Debug("payment still open", zap.Int64("order", order.ID))
		return nil
	}

	rec, err := ss.reconciler.Apply(ctx, ev)
	if err != nil {
		if errors.Is(err, models.ErrReferenceMismatch) {
			// logged by reconciler
			return nil
		}
		return err
	}

	if rec.ClearCart && rec.Order.CartSession != "" {
		if err := ss.carts.Clear(ctx, rec.Order.CartSession); err != nil {
			ss.logger.Warn("failed to clear cart", zap.Int64("order", order.ID), zap.Error(err))
		}
	}

	return nil
}
