package models

import (
	"fmt"
	"strings"
	"time"
)

// Provider is payment provider
type Provider uint8

const (
	ProviderNone Provider = iota
	ProviderStripe
	ProviderHeleket
)

var providerNames = [...]string{
	ProviderNone:    "",
	ProviderStripe:  "stripe",
	ProviderHeleket: "heleket",
}

func (p Provider) String() string {
	if int(p) < len(providerNames) {
		return providerNames[p]
	}
	return fmt.Sprintf("Provider(%d)", uint8(p))
}

// ParseProvider converts provider name to Provider, empty name is ProviderNone
func ParseProvider(s string) (Provider, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range providerNames {
		if name == s {
			return Provider(i), nil
		}
	}
	return ProviderNone, fmt.Errorf("%w: %q", ErrUnknownProvider, s)
}

// Outcome is normalized payment result reported by provider
type Outcome uint8

const (
	OutcomeUnknown Outcome = iota
	OutcomePaid
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePaid:
		return "paid"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventSource tells where payment event came from
type EventSource string

const (
	SourceWebhook  EventSource = "webhook"
	SourceRedirect EventSource = "redirect"
	SourceSweeper  EventSource = "sweeper"
	SourceCheckout EventSource = "checkout"
)

// PaymentEvent is provider neutral payment notification
type PaymentEvent struct {
	Provider Provider
	// OrderID is order reference carried by provider, zero if event has none
	OrderID int64
	Outcome Outcome
	// Reference is checkout handle issued at checkout (stripe session id, heleket uuid)
	Reference string
	// PaymentID is provider side payment id
	PaymentID string
	Source    EventSource
}

// HasOrder reports whether event refers to an order
func (e PaymentEvent) HasOrder() bool {
	return e.OrderID > 0
}

// Transition is applied order status change
type Transition struct {
	OrderID   int64
	Provider  Provider
	From      OrderStatus
	To        OrderStatus
	Reference string
	PaymentID string
	Source    EventSource
	At        time.Time
}

// CheckoutRequest contains everything provider needs to open hosted checkout
type CheckoutRequest struct {
	Order      *Order
	Lines      []CartLine
	SuccessURL string
	CancelURL  string
	// CallbackURL is webhook address, used by providers that take it per payment
	CallbackURL string
}

// PaymentSession is hosted checkout opened at provider
type PaymentSession struct {
	Provider    Provider
	Reference   string
	RedirectURL string
}

// PaymentInitiationError is returned when provider refuses or fails to open checkout
type PaymentInitiationError struct {
	Provider Provider
	// Temporary is set when retrying later may succeed
	Temporary bool
	Err       error
}

// NewPaymentInitiationError creates new PaymentInitiationError
func NewPaymentInitiationError(p Provider, temporary bool, err error) *PaymentInitiationError {
	return &PaymentInitiationError{
		Provider:  p,
		Temporary: temporary,
		Err:       err,
	}
}

func (e *PaymentInitiationError) Error() string {
	return fmt.Sprintf("%s: payment initiation failed: %v", e.Provider, e.Err)
}

func (e *PaymentInitiationError) Unwrap() error {
	return e.Err
}

func (e *PaymentInitiationError) Is(target error) bool {
	return target == ErrPaymentInitiationFailed
}
