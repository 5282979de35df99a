package handler

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/rookgm/storefront/internal/middleware"
	"github.com/rookgm/storefront/internal/models"
	"go.uber.org/zap"
	"mime"
	"net/http"
)

type CheckoutService interface {
	// Checkout creates order from session cart and opens provider checkout
	Checkout(ctx context.Context, session string, p models.Provider) (*models.PaymentSession, error)
}

// CheckoutHandler represents HTTP handler for checkout requests
type CheckoutHandler struct {
	svc    CheckoutService
	logger *zap.Logger
}

// NewCheckoutHandler creates new CheckoutHandler instance
func NewCheckoutHandler(svc CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		svc:    svc,
		logger: logger,
	}
}

type checkoutRequest struct {
	Provider string `json:"provider"`
}

// Checkout sends payer to provider checkout page
// 303 — переход на страницу оплаты (HTMX получает 200 и HX-Redirect);
// 400 — неверный формат запроса, неизвестный провайдер или пустая корзина;
// 502 — провайдер отклонил платёж;
// 503 — провайдер временно недоступен;
// 500 — внутренняя ошибка сервера.
func (ch *CheckoutHandler) Checkout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.Session(r.Context())
		if !ok {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		var req checkoutRequest
		if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			defer r.Body.Close()
		} else {
			req.Provider = r.FormValue("provider")
		}

		p, err := models.ParseProvider(req.Provider)
		if err != nil || p == models.ProviderNone {
			http.Error(w, "unknown payment provider", http.StatusBadRequest)
			return
		}

		sess, err := ch.svc.Checkout(r.Context(), session, p)
		if err != nil {
			code := statusFor(err)
			if code >= http.StatusInternalServerError {
				ch.logger.Error("checkout failed", zap.Stringer("provider", p), zap.Error(err))
			}
			var initErr *models.PaymentInitiationError
			if errors.As(err, &initErr) {
				http.Error(w, "payment provider is unavailable, try again later", code)
				return
			}
			writeError(w, err)
			return
		}

		if isHTMX(r) {
			w.Header().Set("HX-Redirect", sess.RedirectURL)
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, sess.RedirectURL, http.StatusSeeOther)
	}
}
