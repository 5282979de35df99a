package handler

import (
	"encoding/json"
	"github.com/rookgm/storefront/internal/middleware"
	"github.com/rookgm/storefront/internal/models"
	"go.uber.org/zap"
	"net/http"
)

// CartHandler represents HTTP handler for cart requests
type CartHandler struct {
	svc    CartService
	logger *zap.Logger
}

// NewCartHandler creates new CartHandler instance
func NewCartHandler(svc CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		svc:    svc,
		logger: logger,
	}
}

type cartLineResponse struct {
	ProductSizeID int64  `json:"product_size_id"`
	Name          string `json:"name"`
	UnitPrice     string `json:"unit_price"`
	Quantity      int    `json:"quantity"`
	Subtotal      string `json:"subtotal"`
}

type cartResponse struct {
	Items []cartLineResponse `json:"items"`
	Total string             `json:"total"`
}

// GetCart returns session cart
// 200 — успешная обработка запроса;
// 500 — внутренняя ошибка сервера.
func (ch *CartHandler) GetCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.Session(r.Context())
		if !ok {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		lines, err := ch.svc.Lines(r.Context(), session)
		if err != nil {
			ch.logger.Error("get cart", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		resp := cartResponse{
			Items: make([]cartLineResponse, 0, len(lines)),
			Total: models.CartTotal(lines).StringFixed(2),
		}
		for _, l := range lines {
			resp.Items = append(resp.Items, cartLineResponse{
				ProductSizeID: l.ProductSizeID,
				Name:          l.Name(),
				UnitPrice:     l.UnitPrice.StringFixed(2),
				Quantity:      l.Quantity,
				Subtotal:      l.Subtotal().StringFixed(2),
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

type addItemRequest struct {
	ProductSizeID int64 `json:"product_size_id"`
	Quantity      int   `json:"quantity"`
}

type addItemResponse struct {
	ProductSizeID int64 `json:"product_size_id"`
	Quantity      int   `json:"quantity"`
}

// AddItem puts product size into session cart
// 200 — товар добавлен;
// 400 — неверный формат запроса;
// 404 — товар не найден;
// 422 — неверное количество;
// 500 — внутренняя ошибка сервера.
func (ch *CartHandler) AddItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := middleware.Session(r.Context())
		if !ok {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		var req addItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		qty, err := ch.svc.Add(r.Context(), session, req.ProductSizeID, req.Quantity)
		if err != nil {
			if statusFor(err) >= http.StatusInternalServerError {
				ch.logger.Error("add cart item", zap.Error(err))
			}
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, addItemResponse{ProductSizeID: req.ProductSizeID, Quantity: qty})
	}
}
