package handler

import (
	"context"
	"errors"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/rookgm/storefront/internal/middleware"
	"github.com/rookgm/storefront/internal/models"
	"go.uber.org/zap"
	"io"
	"net/http"
	"strconv"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks . WebhookParser,PaymentService,CartService,CheckoutService

// max accepted webhook body
const maxWebhookBody = 1 << 20

// WebhookParser verifies and normalizes provider notifications
type WebhookParser interface {
	// Provider returns provider served by parser
	Provider() models.Provider
	// SignatureHeader returns name of header carrying signature
	SignatureHeader() string
	// ParseWebhook verifies raw body against signature and returns normalized event
	ParseWebhook(body []byte, sig string) (models.PaymentEvent, error)
}

type PaymentService interface {
	// Reconcile applies provider event to order
	Reconcile(ctx context.Context, ev models.PaymentEvent) (*models.Reconciliation, error)
	// CancelOrder cancels order after payer left provider page
	CancelOrder(ctx context.Context, provider models.Provider, orderID int64) (*models.Reconciliation, error)
	// GetOrder returns order by id
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	// GetOrderByReference returns order by provider checkout handle
	GetOrderByReference(ctx context.Context, provider models.Provider, ref string) (*models.Order, error)
}

type CartService interface {
	// Lines returns priced cart lines
	Lines(ctx context.Context, session string) ([]models.CartLine, error)
	// Add puts product size into cart and returns its new quantity
	Add(ctx context.Context, session string, productSizeID int64, qty int) (int, error)
	// Clear empties cart
	Clear(ctx context.Context, session string) error
}

// PaymentHandler represents HTTP handler for provider callbacks and return pages
type PaymentHandler struct {
	parsers map[models.Provider]WebhookParser
	svc     PaymentService
	carts   CartService
	views   *Views
	logger  *zap.Logger
}

// NewPaymentHandler creates new PaymentHandler instance
func NewPaymentHandler(svc PaymentService, carts CartService, views *Views, logger *zap.Logger, parsers ...WebhookParser) *PaymentHandler {
	pp := make(map[models.Provider]WebhookParser, len(parsers))
	for _, p := range parsers {
		pp[p.Provider()] = p
	}
	return &PaymentHandler{
		parsers: pp,
		svc:     svc,
		carts:   carts,
		views:   views,
		logger:  logger,
	}
}

// provider returns configured provider named in URL
func (ph *PaymentHandler) provider(r *http.Request) (models.Provider, WebhookParser, bool) {
	p, err := models.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil || p == models.ProviderNone {
		return models.ProviderNone, nil, false
	}
	parser, ok := ph.parsers[p]
	return p, parser, ok
}

// Webhook handles provider payment notification
// 200 — уведомление принято (в том числе повторное или не относящееся к заказу);
// 400 — неверная подпись, неверный формат или неизвестный заказ;
// 404 — провайдер не настроен;
// 500 — внутренняя ошибка сервера, провайдер повторит уведомление.
func (ph *PaymentHandler) Webhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, parser, ok := ph.provider(r)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		ev, err := parser.ParseWebhook(body, r.Header.Get(parser.SignatureHeader()))
		if err != nil {
			switch {
			case errors.Is(err, models.ErrSignatureInvalid):
				ph.logger.Warn("webhook signature rejected",
					zap.Stringer("provider", p),
					zap.String("remote", r.RemoteAddr),
					zap.Error(err))
				http.Error(w, "invalid signature", http.StatusBadRequest)
			default:
				ph.logger.Info("webhook payload rejected", zap.Stringer("provider", p), zap.Error(err))
				http.Error(w, "bad request", http.StatusBadRequest)
			}
			return
		}

		if !ev.HasOrder() {
			ph.logger.Debug("webhook ignored", zap.Stringer("provider", p))
			w.WriteHeader(http.StatusOK)
			return
		}

		rec, err := ph.svc.Reconcile(r.Context(), ev)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrOrderNotFound), errors.Is(err, models.ErrReferenceMismatch):
				http.Error(w, "unknown order", http.StatusBadRequest)
			default:
				ph.logger.Error("webhook reconcile failed",
					zap.Stringer("provider", p),
					zap.Int64("order", ev.OrderID),
					zap.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		if rec.ClearCart {
			ph.clearCart(r.Context(), rec.Order)
		}

		w.WriteHeader(http.StatusOK)
	}
}

// Success renders return page after payment
// 200 — страница оплаченного или ожидающего оплаты заказа;
// 303 — заказ отменён или не указан;
// 404 — заказ не найден или принадлежит другой корзине;
// 500 — внутренняя ошибка сервера.
func (ph *PaymentHandler) Success() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _, ok := ph.provider(r)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		session, ok := middleware.Session(r.Context())
		if !ok {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		var (
			order *models.Order
			err   error
		)
		if sid := r.URL.Query().Get("session_id"); p == models.ProviderStripe && sid != "" {
			order, err = ph.svc.GetOrderByReference(r.Context(), p, sid)
		} else if id, ok := orderID(r); ok {
			order, err = ph.svc.GetOrder(r.Context(), id)
		} else {
			http.Redirect(w, r, "/cart", http.StatusSeeOther)
			return
		}
		if !ph.ownedOrder(w, order, err, session) {
			return
		}

		switch order.Status {
		case models.OrderStatusCompleted:
			// webhook may not have cleared it yet
			ph.clearCart(r.Context(), order)
			ph.render(w, r, viewSuccess, newOrderView(order))
		case models.OrderStatusCancelled:
			http.Redirect(w, r, fmt.Sprintf("/payment/%s/cancel?order_id=%d", p, order.ID), http.StatusSeeOther)
		default:
			view := newOrderView(order)
			view.RefreshURL = r.URL.RequestURI()
			ph.render(w, r, viewPending, view)
		}
	}
}

// Cancel cancels order after payer left provider page
// 200 — страница отменённого заказа, оплаченный заказ остаётся оплаченным;
// 303 — заказ не указан;
// 400 — заказ оплачивается через другого провайдера;
// 404 — заказ не найден или принадлежит другой корзине;
// 500 — внутренняя ошибка сервера.
func (ph *PaymentHandler) Cancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _, ok := ph.provider(r)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		session, ok := middleware.Session(r.Context())
		if !ok {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		id, ok := orderID(r)
		if !ok {
			http.Redirect(w, r, "/cart", http.StatusSeeOther)
			return
		}
		order, err := ph.svc.GetOrder(r.Context(), id)
		if !ph.ownedOrder(w, order, err, session) {
			return
		}

		rec, err := ph.svc.CancelOrder(r.Context(), p, id)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrReferenceMismatch):
				http.Error(w, "order is paid via another provider", http.StatusBadRequest)
			case errors.Is(err, models.ErrOrderNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			default:
				ph.logger.Error("cancel order failed", zap.Int64("order", id), zap.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		view := newOrderView(rec.Order)
		view.Conflict = rec.Order.Status == models.OrderStatusCompleted
		ph.render(w, r, viewCancel, view)
	}
}

// ownedOrder writes error response unless order was found and belongs to session
func (ph *PaymentHandler) ownedOrder(w http.ResponseWriter, order *models.Order, err error, session string) bool {
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return false
		}
		ph.logger.Error("get order failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return false
	}
	if order.CartSession != session {
		http.Error(w, "not found", http.StatusNotFound)
		return false
	}
	return true
}

func (ph *PaymentHandler) clearCart(ctx context.Context, order *models.Order) {
	if order == nil || order.CartSession == "" {
		return
	}
	if err := ph.carts.Clear(ctx, order.CartSession); err != nil {
		// order is already completed, cart is cleared again on success page
		ph.logger.Warn("failed to clear cart", zap.Int64("order", order.ID), zap.Error(err))
	}
}

func (ph *PaymentHandler) render(w http.ResponseWriter, r *http.Request, name string, data orderView) {
	if err := ph.views.render(w, r, name, data); err != nil {
		ph.logger.Error("render view", zap.String("view", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// orderID extracts positive order_id query parameter
func orderID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("order_id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
