package handler

import (
	"context"
	"fmt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rookgm/storefront/config"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/provider/heleket"
	"github.com/rookgm/storefront/internal/repository"
	"github.com/rookgm/storefront/internal/service"
	"github.com/rookgm/storefront/internal/signature"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

const scenarioAPIKey = "heleket-api-key"

// orderStore is in-memory service.OrderRepository
type orderStore struct {
	mu     sync.Mutex
	orders map[int64]models.Order
}

func (s *orderStore) CreateOrder(_ context.Context, order *models.Order, _ []models.CartLine) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order.ID = int64(len(s.orders) + 1)
	s.orders[order.ID] = *order
	return order, nil
}

func (s *orderStore) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return &o, nil
}

func (s *orderStore) GetOrderByReference(_ context.Context, p models.Provider, ref string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.PaymentProvider == p && o.PaymentReference == ref {
			return &o, nil
		}
	}
	return nil, models.ErrOrderNotFound
}

// UpdateOrderLocked holds the store lock for the whole update
func (s *orderStore) UpdateOrderLocked(_ context.Context, id int64, fn func(order *models.Order) (bool, error)) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	save, err := fn(&o)
	if err != nil {
		return nil, err
	}
	if save {
		s.orders[id] = o
	}
	return &o, nil
}

func (s *orderStore) status(t *testing.T, id int64) models.OrderStatus {
	t.Helper()
	o, err := s.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o.Status
}

type catalog map[int64]models.ProductSize

func (c catalog) GetProductSizes(_ context.Context, ids []int64) (map[int64]models.ProductSize, error) {
	out := map[int64]models.ProductSize{}
	for _, id := range ids {
		if ps, ok := c[id]; ok {
			out[id] = ps
		}
	}
	return out, nil
}

// countingCarts counts cart clears made by handler
type countingCarts struct {
	CartService
	clears atomic.Int32
}

func (c *countingCarts) Clear(ctx context.Context, session string) error {
	c.clears.Add(1)
	return c.CartService.Clear(ctx, session)
}

type scenario struct {
	orders *orderStore
	carts  *service.CartService
	clears *countingCarts
	redis  *miniredis.Miniredis
	router http.Handler
}

func newScenario(t *testing.T, status models.OrderStatus) *scenario {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	carts := service.NewCartService(repository.NewCartRepository(rdb), catalog{
		7: {ID: 7, ProductName: "Tee", SizeName: "M", Price: decimal.RequireFromString("29.95")},
	})
	_, err := carts.Add(context.Background(), testSession, 7, 2)
	require.NoError(t, err)

	orders := &orderStore{orders: map[int64]models.Order{
		42: {
			ID:               42,
			CartSession:      testSession,
			Total:            decimal.RequireFromString("59.90"),
			Currency:         "USDT",
			Status:           status,
			PaymentProvider:  models.ProviderHeleket,
			PaymentReference: "inv-42",
		},
	}}

	reconciler := service.NewReconciler(orders, nil, zap.NewNop())
	client := heleket.NewClient(config.Heleket{Merchant: "merchant", APIKey: scenarioAPIKey}, zap.NewNop())
	counting := &countingCarts{CartService: carts}
	ph := NewPaymentHandler(service.NewPaymentService(reconciler, orders), counting, newTestViews(t), zap.NewNop(), client)

	return &scenario{
		orders: orders,
		carts:  carts,
		clears: counting,
		redis:  mr,
		router: newPaymentRouter(t, ph),
	}
}

func (s *scenario) deliver(t *testing.T, body, sign string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payment/heleket/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("sign", sign)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	res := w.Result()
	defer res.Body.Close()
	return res.StatusCode
}

func heleketNotification(orderID int64, status string) string {
	return heleketInvoiceNotification("inv-42", orderID, status)
}

func heleketInvoiceNotification(uuid string, orderID int64, status string) string {
	return fmt.Sprintf(`{"result":{"uuid":"%s","order_id":"%d","payment_status":"%s","amount":"59.90"}}`, uuid, orderID, status)
}

// newPendingScenario starts from order checkout never attached a payment to
func newPendingScenario(t *testing.T) *scenario {
	t.Helper()
	s := newScenario(t, models.OrderStatusPending)
	s.orders.mu.Lock()
	o := s.orders.orders[42]
	o.PaymentProvider = models.ProviderNone
	o.PaymentReference = ""
	s.orders.orders[42] = o
	s.orders.mu.Unlock()
	return s
}

func (s *scenario) order(t *testing.T, id int64) *models.Order {
	t.Helper()
	o, err := s.orders.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func TestScenario_HeleketPaid(t *testing.T) {
	s := newScenario(t, models.OrderStatusProcessing)
	body := heleketNotification(42, "paid")
	sign := signature.Sign([]byte(body), scenarioAPIKey)

	assert.Equal(t, http.StatusOK, s.deliver(t, body, sign))
	assert.Equal(t, models.OrderStatusCompleted, s.orders.status(t, 42))
	assert.False(t, s.redis.Exists("cart:"+testSession))

	// provider retries the same notification
	assert.Equal(t, http.StatusOK, s.deliver(t, body, sign))
	assert.Equal(t, models.OrderStatusCompleted, s.orders.status(t, 42))
}

func TestScenario_HeleketFailed(t *testing.T) {
	s := newScenario(t, models.OrderStatusProcessing)
	body := heleketNotification(42, "fail")

	assert.Equal(t, http.StatusOK, s.deliver(t, body, signature.Sign([]byte(body), scenarioAPIKey)))
	assert.Equal(t, models.OrderStatusCancelled, s.orders.status(t, 42))

	lines, err := s.carts.Lines(context.Background(), testSession)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
}

func TestScenario_HeleketUnknownOrder(t *testing.T) {
	s := newScenario(t, models.OrderStatusProcessing)
	body := heleketNotification(999, "paid")

	assert.Equal(t, http.StatusBadRequest, s.deliver(t, body, signature.Sign([]byte(body), scenarioAPIKey)))
	assert.Equal(t, models.OrderStatusProcessing, s.orders.status(t, 42))
}

func TestScenario_HeleketBadSignature(t *testing.T) {
	s := newScenario(t, models.OrderStatusProcessing)
	body := heleketNotification(42, "paid")

	tests := []struct {
		name string
		sign string
	}{
		{name: "missing", sign: ""},
		{name: "wrong_secret", sign: signature.Sign([]byte(body), "guess")},
		{name: "other_body", sign: signature.Sign([]byte(heleketNotification(41, "paid")), scenarioAPIKey)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, s.deliver(t, body, tt.sign))
			assert.Equal(t, models.OrderStatusProcessing, s.orders.status(t, 42))
			assert.True(t, s.redis.Exists("cart:"+testSession))
		})
	}
}

func TestScenario_HeleketPaidAfterCancel(t *testing.T) {
	s := newScenario(t, models.OrderStatusCancelled)
	body := heleketNotification(42, "paid")

	assert.Equal(t, http.StatusOK, s.deliver(t, body, signature.Sign([]byte(body), scenarioAPIKey)))
	assert.Equal(t, models.OrderStatusCancelled, s.orders.status(t, 42))
}

func TestScenario_CancelAfterPaid(t *testing.T) {
	s := newScenario(t, models.OrderStatusProcessing)
	body := heleketNotification(42, "paid")
	require.Equal(t, http.StatusOK, s.deliver(t, body, signature.Sign([]byte(body), scenarioAPIKey)))

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payment/heleket/cancel?order_id=42", nil))

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, w.Body.String(), "Order already paid")
	assert.Equal(t, models.OrderStatusCompleted, s.orders.status(t, 42))
}

func TestScenario_HeleketWrongAmountOnPendingOrder(t *testing.T) {
	s := newPendingScenario(t)
	body := heleketInvoiceNotification("abc", 42, "wrong_amount")

	assert.Equal(t, http.StatusOK, s.deliver(t, body, signature.Sign([]byte(body), scenarioAPIKey)))

	got := s.order(t, 42)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
	assert.Equal(t, "abc", got.PaymentID)
	assert.Equal(t, "abc", got.PaymentReference)
	assert.Equal(t, models.ProviderHeleket, got.PaymentProvider)
	assert.True(t, s.redis.Exists("cart:"+testSession))
	assert.Zero(t, s.clears.clears.Load())
}

func TestScenario_HeleketPaidOnPendingOrder(t *testing.T) {
	s := newPendingScenario(t)
	body := heleketInvoiceNotification("abc", 42, "paid")

	assert.Equal(t, http.StatusOK, s.deliver(t, body, signature.Sign([]byte(body), scenarioAPIKey)))

	got := s.order(t, 42)
	assert.Equal(t, models.OrderStatusCompleted, got.Status)
	assert.Equal(t, "abc", got.PaymentID)
	assert.False(t, s.redis.Exists("cart:"+testSession))
}

func TestScenario_HeleketConcurrentDeliveries(t *testing.T) {
	const deliveries = 16

	s := newScenario(t, models.OrderStatusProcessing)
	body := heleketNotification(42, "paid")
	sign := signature.Sign([]byte(body), scenarioAPIKey)

	statuses := make([]int, deliveries)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			statuses[i] = s.deliver(t, body, sign)
		}(i)
	}
	close(start)
	wg.Wait()

	for i, code := range statuses {
		assert.Equal(t, http.StatusOK, code, "delivery %d", i)
	}
	assert.Equal(t, int32(1), s.clears.clears.Load())
	assert.Equal(t, models.OrderStatusCompleted, s.orders.status(t, 42))
	assert.False(t, s.redis.Exists("cart:"+testSession))
}
