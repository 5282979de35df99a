package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/rookgm/storefront/internal/models"
	"go.uber.org/zap"
	"time"
)

// OrderRepository is interface for interacting with order-related data
type OrderRepository interface {
	// CreateOrder inserts new order with its lines
	CreateOrder(ctx context.Context, order *models.Order, lines []models.CartLine) (*models.Order, error)
	// GetOrder returns order by id
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	// GetOrderByReference returns order by provider checkout handle
	GetOrderByReference(ctx context.Context, provider models.Provider, ref string) (*models.Order, error)
	// UpdateOrderLocked runs fn on order under row lock, saves order if fn returns true
	UpdateOrderLocked(ctx context.Context, id int64, fn func(order *models.Order) (bool, error)) (*models.Order, error)
}

// AuditPublisher receives every applied order transition
type AuditPublisher interface {
	PublishTransition(ctx context.Context, t models.Transition)
}

// Reconciler is the only place where order status changes.
// Every change happens inside UpdateOrderLocked, so concurrent deliveries
// for one order are applied one at a time.
type Reconciler struct {
	orders OrderRepository
	audit  AuditPublisher
	logger *zap.Logger
}

// NewReconciler creates new Reconciler instance, audit may be nil
func NewReconciler(orders OrderRepository, audit AuditPublisher, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		orders: orders,
		audit:  audit,
		logger: logger,
	}
}

// Apply applies payment event to the order it refers to.
//
// Repeated events are no-ops. An event contradicting a terminal status is
// logged and ignored, it is not an error. ErrOrderNotFound and
// ErrReferenceMismatch are returned for events that can not be correlated.
func (r *Reconciler) Apply(ctx context.Context, ev models.PaymentEvent) (*models.Reconciliation, error) {
	if !ev.HasOrder() {
		return nil, models.ErrMissingOrderReference
	}

	rec := &models.Reconciliation{}
	conflict := false

	order, err := r.orders.UpdateOrderLocked(ctx, ev.OrderID, func(o *models.Order) (bool, error) {
		rec.Previous = o.Status

		if err := checkCorrelation(o, ev); err != nil {
			return false, err
		}

		next, changed := o.Status.Next(ev.Outcome)
		if !changed {
			conflict = o.Status.Conflicts(ev.Outcome)
			return false, nil
		}

		o.Status = next
		if o.PaymentReference == "" && ev.Reference != "" {
			o.PaymentProvider = ev.Provider
			o.PaymentReference = ev.Reference
		}
		if ev.PaymentID != "" {
			o.PaymentID = ev.PaymentID
		}

		rec.Transitioned = true
		rec.ClearCart = next == models.OrderStatusCompleted
		return true, nil
	})
	if err != nil {
		if errors.Is(err, models.ErrReferenceMismatch) {
			r.logger.Warn("payment event does not match order",
				zap.Int64("order", ev.OrderID),
				zap.Stringer("provider", ev.Provider),
				zap.String("reference", ev.Reference),
				zap.Error(err))
		}
		return nil, err
	}
	rec.Order = order

	fields := []zap.Field{
		zap.Int64("order", order.ID),
		zap.Stringer("provider", ev.Provider),
		zap.Stringer("outcome", ev.Outcome),
		zap.String("source", string(ev.Source)),
		zap.Stringer("status", order.Status),
	}

	switch {
	case rec.Transitioned:
		r.logger.Info("order status changed", append(fields, zap.Stringer("from", rec.Previous))...)
		r.publish(ctx, models.Transition{
			OrderID:   order.ID,
			Provider:  ev.Provider,
			From:      rec.Previous,
			To:        order.Status,
			Reference: order.PaymentReference,
			PaymentID: order.PaymentID,
			Source:    ev.Source,
			At:        order.UpdatedAt,
		})
	case conflict:
		// needs manual attention, e.g. a refund for a cancelled order that got paid
		r.logger.Warn("payment event conflicts with terminal order status",
			append(fields, zap.Error(models.ErrTerminalStateConflict))...)
	default:
		r.logger.Debug("payment event left order unchanged", fields...)
	}

	return rec, nil
}

// AttachPayment records checkout handle issued by provider and moves pending order to processing.
// Repeating the call with the same session is a no-op.
func (r *Reconciler) AttachPayment(ctx context.Context, orderID int64, sess *models.PaymentSession) (*models.Order, error) {
	var (
		from  models.OrderStatus
		moved bool
	)

	order, err := r.orders.UpdateOrderLocked(ctx, orderID, func(o *models.Order) (bool, error) {
		from = o.Status

		if o.PaymentProvider == sess.Provider && o.PaymentReference == sess.Reference {
			return false, nil
		}
		if o.PaymentReference != "" || (o.PaymentProvider != models.ProviderNone && o.PaymentProvider != sess.Provider) {
			return false, fmt.Errorf("%w: order has %s payment %q", models.ErrReferenceMismatch, o.PaymentProvider, o.PaymentReference)
		}

		o.PaymentProvider = sess.Provider
		o.PaymentReference = sess.Reference
		if o.Status == models.OrderStatusPending {
			o.Status = models.OrderStatusProcessing
			moved = true
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if moved {
		r.logger.Info("order awaits payment",
			zap.Int64("order", order.ID),
			zap.Stringer("provider", sess.Provider),
			zap.String("reference", sess.Reference))
		r.publish(ctx, models.Transition{
			OrderID:   order.ID,
			Provider:  sess.Provider,
			From:      from,
			To:        order.Status,
			Reference: sess.Reference,
			Source:    models.SourceCheckout,
			At:        order.UpdatedAt,
		})
	}

	return order, nil
}

func (r *Reconciler) publish(ctx context.Context, t models.Transition) {
	if r.audit == nil {
		return
	}
	if t.At.IsZero() {
		t.At = time.Now()
	}
	r.audit.PublishTransition(ctx, t)
}

// checkCorrelation rejects events issued for another payment of the order
func checkCorrelation(o *models.Order, ev models.PaymentEvent) error {
	if o.PaymentProvider != models.ProviderNone && ev.Provider != o.PaymentProvider {
		return fmt.Errorf("%w: order is paid via %s, event from %s", models.ErrReferenceMismatch, o.PaymentProvider, ev.Provider)
	}
	if o.PaymentReference != "" && ev.Reference != "" && ev.Reference != o.PaymentReference {
		return fmt.Errorf("%w: order reference %q, event reference %q", models.ErrReferenceMismatch, o.PaymentReference, ev.Reference)
	}
	return nil
}
