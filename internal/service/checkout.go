package service

import (
	"context"
	"fmt"
	"github.com/rookgm/storefront/internal/models"
	"go.uber.org/zap"
	"strings"
	"time"
)

// Gateway is payment provider adapter used at checkout
type Gateway interface {
	// Provider returns provider served by gateway
	Provider() models.Provider
	// Currency returns currency orders are priced in
	Currency() string
	// CreateCheckout opens hosted checkout at provider
	CreateCheckout(ctx context.Context, req models.CheckoutRequest) (*models.PaymentSession, error)
}

// CheckoutInitiator opens provider checkout for existing orders
type CheckoutInitiator struct {
	gateways   map[models.Provider]Gateway
	reconciler *Reconciler
	baseURL    string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewCheckoutInitiator creates new CheckoutInitiator instance
func NewCheckoutInitiator(reconciler *Reconciler, baseURL string, timeout time.Duration, logger *zap.Logger, gateways ...Gateway) *CheckoutInitiator {
	gw := make(map[models.Provider]Gateway, len(gateways))
	for _, g := range gateways {
		gw[g.Provider()] = g
	}
	return &CheckoutInitiator{
		gateways:   gw,
		reconciler: reconciler,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		logger:     logger,
	}
}

// Gateway returns gateway for provider
func (ci *CheckoutInitiator) Gateway(p models.Provider) (Gateway, error) {
	g, ok := ci.gateways[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownProvider, p)
	}
	return g, nil
}

// Initiate opens checkout for pending order and records the provider handle on it.
//
// The provider call is bounded by timeout. If it fails the order stays pending
// without reference and ErrPaymentInitiationFailed is returned.
func (ci *CheckoutInitiator) Initiate(ctx context.Context, order *models.Order, lines []models.CartLine, p models.Provider) (*models.PaymentSession, error) {
	gw, err := ci.Gateway(p)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending || order.PaymentReference != "" {
		return nil, fmt.Errorf("%w: order %d is %s", models.ErrOrderNotPayable, order.ID, order.Status)
	}

	req := models.CheckoutRequest{
		Order:       order,
		Lines:       lines,
		SuccessURL:  ci.successURL(p, order.ID),
		CancelURL:   fmt.Sprintf("%s/payment/%s/cancel?order_id=%d", ci.baseURL, p, order.ID),
		CallbackURL: fmt.Sprintf("%s/payment/%s/webhook", ci.baseURL, p),
	}

	providerCtx, cancel := context.WithTimeout(ctx, ci.timeout)
	defer cancel()

	sess, err := gw.CreateCheckout(providerCtx, req)
	if err != nil {
		ci.logger.Error("payment initiation failed",
			zap.Int64("order", order.ID),
			zap.Stringer("provider", p),
			zap.Error(err))
		return nil, err
	}

	// provider already has the payment, a failure here is recovered by webhook or sweeper
	if _, err := ci.reconciler.AttachPayment(ctx, order.ID, sess); err != nil {
		ci.logger.Error("failed to record payment reference",
			zap.Int64("order", order.ID),
			zap.Stringer("provider", p),
			zap.String("reference", sess.Reference),
			zap.Error(err))
		return nil, err
	}

	return sess, nil
}

func (ci *CheckoutInitiator) successURL(p models.Provider, orderID int64) string {
	if p == models.ProviderStripe {
		// placeholder is substituted by Stripe
		return ci.baseURL + "/payment/stripe/success?session_id={CHECKOUT_SESSION_ID}"
	}
	return fmt.Sprintf("%s/payment/%s/success?order_id=%d", ci.baseURL, p, orderID)
}

// CheckoutService turns session cart into order and starts payment
type CheckoutService struct {
	initiator *CheckoutInitiator
	carts     *CartService
	orders    OrderRepository
}

// NewCheckoutService creates new CheckoutService instance
func NewCheckoutService(initiator *CheckoutInitiator, carts *CartService, orders OrderRepository) *CheckoutService {
	return &CheckoutService{
		initiator: initiator,
		carts:     carts,
		orders:    orders,
	}
}

// Checkout creates order from cart priced by catalog and opens provider checkout
func (cs *CheckoutService) Checkout(ctx context.Context, session string, p models.Provider) (*models.PaymentSession, error) {
	gw, err := cs.initiator.Gateway(p)
	if err != nil {
		return nil, err
	}

	lines, err := cs.carts.Lines(ctx, session)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, models.ErrEmptyCart
	}

	order, err := cs.orders.CreateOrder(ctx, &models.Order{
		CartSession: session,
		Total:       models.CartTotal(lines),
		Currency:    gw.Currency(),
		Status:      models.OrderStatusPending,
	}, lines)
	if err != nil {
		return nil, err
	}

	return cs.initiator.Initiate(ctx, order, lines, p)
}
