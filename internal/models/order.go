package models

import (
	"fmt"
	"github.com/shopspring/decimal"
	"time"
)

// pending — заказ создан, оплата ещё не инициирована;
// processing — покупатель отправлен к платёжному провайдеру;
// completed — провайдер подтвердил оплату;
// cancelled — оплата отклонена или отменена покупателем.

// OrderStatus is order lifecycle state
type OrderStatus uint8

// order status
const (
	OrderStatusPending OrderStatus = iota
	OrderStatusProcessing
	OrderStatusCompleted
	OrderStatusCancelled
)

var orderStatusNames = [...]string{
	OrderStatusPending:    "pending",
	OrderStatusProcessing: "processing",
	OrderStatusCompleted:  "completed",
	OrderStatusCancelled:  "cancelled",
}

func (s OrderStatus) String() string {
	if int(s) < len(orderStatusNames) {
		return orderStatusNames[s]
	}
	return fmt.Sprintf("OrderStatus(%d)", uint8(s))
}

// ParseOrderStatus converts stored status name to OrderStatus
func ParseOrderStatus(s string) (OrderStatus, error) {
	for i, name := range orderStatusNames {
		if name == s {
			return OrderStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown order status %q", s)
}

// IsTerminal reports whether no further transitions are allowed
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// transitions holds every allowed status change driven by a payment outcome.
// Pairs missing from the table leave the status unchanged.
var transitions = map[OrderStatus]map[Outcome]OrderStatus{
	OrderStatusPending: {
		OutcomePaid:   OrderStatusCompleted,
		OutcomeFailed: OrderStatusCancelled,
	},
	OrderStatusProcessing: {
		OutcomePaid:   OrderStatusCompleted,
		OutcomeFailed: OrderStatusCancelled,
	},
}

// Next returns status after applying payment outcome.
// changed is false when the outcome leaves the order as is.
func (s OrderStatus) Next(o Outcome) (next OrderStatus, changed bool) {
	if to, ok := transitions[s][o]; ok {
		return to, true
	}
	return s, false
}

// Conflicts reports whether outcome contradicts an already terminal status
func (s OrderStatus) Conflicts(o Outcome) bool {
	switch s {
	case OrderStatusCompleted:
		return o == OutcomeFailed
	case OrderStatusCancelled:
		return o == OutcomePaid
	}
	return false
}

// Order is order entity
type Order struct {
	ID               int64
	CartSession      string
	Total            decimal.Decimal
	Currency         string
	Status           OrderStatus
	PaymentProvider  Provider
	PaymentReference string
	PaymentID        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Reconciliation is result of applying payment event to order
type Reconciliation struct {
	Order        *Order
	Previous     OrderStatus
	Transitioned bool
	// ClearCart is set only for the call that moved the order to completed
	ClearCart bool
}
