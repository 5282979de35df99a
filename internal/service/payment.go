package service

import (
	"context"
	"github.com/rookgm/storefront/internal/models"
)

// PaymentService serves payment callbacks and return pages
type PaymentService struct {
	reconciler *Reconciler
	orders     OrderRepository
}

// NewPaymentService creates new PaymentService instance
func NewPaymentService(reconciler *Reconciler, orders OrderRepository) *PaymentService {
	return &PaymentService{
		reconciler: reconciler,
		orders:     orders,
	}
}

// Reconcile applies provider event to order
func (ps *PaymentService) Reconcile(ctx context.Context, ev models.PaymentEvent) (*models.Reconciliation, error) {
	return ps.reconciler.Apply(ctx, ev)
}

// CancelOrder cancels order after payer left provider page. Completed orders stay completed.
func (ps *PaymentService) CancelOrder(ctx context.Context, provider models.Provider, orderID int64) (*models.Reconciliation, error) {
	return ps.reconciler.Apply(ctx, models.PaymentEvent{
		Provider: provider,
		OrderID:  orderID,
		Outcome:  models.OutcomeFailed,
		Source:   models.SourceRedirect,
	})
}

// GetOrder returns order by id
func (ps *PaymentService) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return ps.orders.GetOrder(ctx, id)
}

// GetOrderByReference returns order by provider checkout handle
func (ps *PaymentService) GetOrderByReference(ctx context.Context, provider models.Provider, ref string) (*models.Order, error) {
	return ps.orders.GetOrderByReference(ctx, provider, ref)
}
