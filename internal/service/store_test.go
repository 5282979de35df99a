package service

import (
	"context"
	"github.com/rookgm/storefront/internal/models"
	"sync"
	"time"
)

// memOrders is in-memory OrderRepository with per-order locks
type memOrders struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*models.Order
	locks  map[int64]*sync.Mutex
	lines  map[int64][]models.CartLine
	// delay widens the window between read and write inside the lock
	delay time.Duration
}

func newMemOrders(orders ...*models.Order) *memOrders {
	m := &memOrders{
		orders: map[int64]*models.Order{},
		locks:  map[int64]*sync.Mutex{},
		lines:  map[int64][]models.CartLine{},
	}
	for _, o := range orders {
		m.put(o)
	}
	return m
}

func (m *memOrders) put(o *models.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	m.locks[o.ID] = &sync.Mutex{}
	if o.ID > m.nextID {
		m.nextID = o.ID
	}
}

func (m *memOrders) get(id int64) *models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

func (m *memOrders) CreateOrder(_ context.Context, order *models.Order, lines []models.CartLine) (*models.Order, error) {
	m.mu.Lock()
	m.nextID++
	cp := *order
	cp.ID = m.nextID
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.orders[cp.ID] = &cp
	m.locks[cp.ID] = &sync.Mutex{}
	m.lines[cp.ID] = lines
	m.mu.Unlock()

	out := cp
	return &out, nil
}

func (m *memOrders) GetOrder(_ context.Context, id int64) (*models.Order, error) {
	if o := m.get(id); o != nil {
		return o, nil
	}
	return nil, models.ErrOrderNotFound
}

func (m *memOrders) GetOrderByReference(_ context.Context, p models.Provider, ref string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.PaymentProvider == p && o.PaymentReference == ref {
			cp := *o
			return &cp, nil
		}
	}
	return nil, models.ErrOrderNotFound
}

func (m *memOrders) UpdateOrderLocked(_ context.Context, id int64, fn func(order *models.Order) (bool, error)) (*models.Order, error) {
	m.mu.Lock()
	lock, ok := m.locks[id]
	m.mu.Unlock()
	if !ok {
		return nil, models.ErrOrderNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	order := m.get(id)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	save, err := fn(order)
	if err != nil {
		return nil, err
	}
	if save {
		order.UpdatedAt = time.Now()
		m.put(order)
	}

	return order, nil
}

// memAudit records published transitions
type memAudit struct {
	mu          sync.Mutex
	transitions []models.Transition
}

func (a *memAudit) PublishTransition(_ context.Context, t models.Transition) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.transitions = append(a.transitions, t)
}

func (a *memAudit) all() []models.Transition {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.Transition(nil), a.transitions...)
}
