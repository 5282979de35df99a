package stripe

import (
	"context"
	"errors"
	"github.com/rookgm/storefront/config"
	"github.com/rookgm/storefront/internal/models"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"go.uber.org/zap"
	"net/http"
	"strconv"
)

// metadata key carrying order id
const orderIDKey = "order_id"

// sessionAPI is the part of Checkout Sessions API used by Client
type sessionAPI interface {
	New(params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error)
	Get(id string, params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error)
}

// Client is Stripe payment adapter
type Client struct {
	sessions      sessionAPI
	webhookSecret string
	currency      string
	logger        *zap.Logger
}

// NewClient creates new Client instance. Credentials stay in the client, the
// package level stripe.Key is never set.
func NewClient(cfg config.Stripe, logger *zap.Logger) *Client {
	backendCfg := &stripeapi.BackendConfig{
		LeveledLogger:     logger.Sugar(),
		MaxNetworkRetries: stripeapi.Int64(2),
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripeapi.String(cfg.APIURL)
	}
	backend := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendCfg)

	c := newClient(session.Client{B: backend, Key: cfg.SecretKey}, cfg.WebhookSecret, logger)
	c.currency = cfg.Currency
	return c
}

func newClient(sessions sessionAPI, webhookSecret string, logger *zap.Logger) *Client {
	return &Client{
		sessions:      sessions,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// Provider returns models.ProviderStripe
func (c *Client) Provider() models.Provider {
	return models.ProviderStripe
}

// Currency returns currency orders paid via Stripe are priced in
func (c *Client) Currency() string {
	return c.currency
}

// CreateCheckout opens Checkout Session for order
func (c *Client) CreateCheckout(ctx context.Context, req models.CheckoutRequest) (*models.PaymentSession, error) {
	order := req.Order
	orderID := strconv.FormatInt(order.ID, 10)

	items := make([]*stripeapi.CheckoutSessionLineItemParams, 0, len(req.Lines))
	for _, line := range req.Lines {
		items = append(items, &stripeapi.CheckoutSessionLineItemParams{
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency: stripeapi.String(order.Currency),
				ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripeapi.String(line.Name()),
				},
				UnitAmount: stripeapi.Int64(line.UnitPrice.Shift(2).Round(0).IntPart()),
			},
			Quantity: stripeapi.Int64(int64(line.Quantity)),
		})
	}

	params := &stripeapi.CheckoutSessionParams{
		Params:             stripeapi.Params{Context: ctx},
		PaymentMethodTypes: stripeapi.StringSlice([]string{"card"}),
		Mode:               stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		LineItems:          items,
		SuccessURL:         stripeapi.String(req.SuccessURL),
		CancelURL:          stripeapi.String(req.CancelURL),
		ClientReferenceID:  stripeapi.String(orderID),
	}
	params.AddMetadata(orderIDKey, orderID)
	params.SetIdempotencyKey("checkout-order-" + orderID)

	sess, err := c.sessions.New(params)
	if err != nil {
		return nil, models.NewPaymentInitiationError(models.ProviderStripe, isTemporary(err), err)
	}
	if sess.ID == "" || sess.URL == "" {
		return nil, models.NewPaymentInitiationError(models.ProviderStripe, false,
			errors.New("checkout session has no id or url"))
	}

	c.logger.Debug("checkout session created",
		zap.Int64("order", order.ID),
		zap.String("session", sess.ID))

	return &models.PaymentSession{
		Provider:    models.ProviderStripe,
		Reference:   sess.ID,
		RedirectURL: sess.URL,
	}, nil
}

// PaymentStatus fetches Checkout Session of order and reports its outcome
func (c *Client) PaymentStatus(ctx context.Context, order *models.Order) (models.PaymentEvent, error) {
	event := models.PaymentEvent{
		Provider: models.ProviderStripe,
		OrderID:  order.ID,
		Source:   models.SourceSweeper,
	}
	if order.PaymentReference == "" {
		return event, nil
	}

	sess, err := c.sessions.Get(order.PaymentReference, &stripeapi.CheckoutSessionParams{
		Params: stripeapi.Params{Context: ctx},
	})
	if err != nil {
		return event, err
	}

	event.Reference = sess.ID
	if sess.PaymentIntent != nil {
		event.PaymentID = sess.PaymentIntent.ID
	}

	switch {
	case sess.PaymentStatus == stripeapi.CheckoutSessionPaymentStatusPaid:
		event.Outcome = models.OutcomePaid
	case sess.Status == stripeapi.CheckoutSessionStatusExpired:
		event.Outcome = models.OutcomeFailed
	}

	return event, nil
}

// isTemporary reports whether Stripe call may succeed on retry
func isTemporary(err error) bool {
	var stripeErr *stripeapi.Error
	if !errors.As(err, &stripeErr) {
		// transport failure or deadline
		return true
	}
	if stripeErr.HTTPStatusCode == http.StatusTooManyRequests || stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
		return true
	}
	return stripeErr.Type == stripeapi.ErrorTypeAPI
}
