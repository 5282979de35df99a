package kafka

import (
	"context"
	"encoding/json"
	"github.com/google/uuid"
	"github.com/rookgm/storefront/internal/models"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"strconv"
	"time"
)

const (
	// TopicPaymentReconciled receives every applied order transition
	TopicPaymentReconciled = "payment.reconciled"

	EventOrderTransitioned = "OrderTransitioned"
)

// Envelope wraps every published event
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// TransitionPayload is payload of OrderTransitioned event
type TransitionPayload struct {
	OrderID   int64  `json:"order_id"`
	Provider  string `json:"provider"`
	From      string `json:"from"`
	To        string `json:"to"`
	Reference string `json:"reference,omitempty"`
	PaymentID string `json:"payment_id,omitempty"`
	Source    string `json:"source"`
}

// AuditPublisher publishes order transitions to Kafka
type AuditPublisher struct {
	producer *Producer
	name     string
	logger   *zap.Logger
}

// NewAuditPublisher creates new AuditPublisher instance
func NewAuditPublisher(producer *Producer, name string, logger *zap.Logger) *AuditPublisher {
	return &AuditPublisher{
		producer: producer,
		name:     name,
		logger:   logger,
	}
}

// PublishTransition queues transition event keyed by order id
func (ap *AuditPublisher) PublishTransition(_ context.Context, t models.Transition) {
	orderID := strconv.FormatInt(t.OrderID, 10)

	payload, err := json.Marshal(TransitionPayload{
		OrderID:   t.OrderID,
		Provider:  t.Provider.String(),
		From:      t.From.String(),
		To:        t.To.String(),
		Reference: t.Reference,
		PaymentID: t.PaymentID,
		Source:    string(t.Source),
	})
	if err != nil {
		ap.logger.Error("marshal transition", zap.Int64("order", t.OrderID), zap.Error(err))
		return
	}

	value, err := json.Marshal(Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderTransitioned,
		EventVersion:  1,
		OccurredAt:    t.At.UTC(),
		Producer:      ap.name,
		CorrelationID: orderID,
		Payload:       payload,
	})
	if err != nil {
		ap.logger.Error("marshal envelope", zap.Int64("order", t.OrderID), zap.Error(err))
		return
	}

	ap.producer.Publish([]byte(orderID), value,
		kafka.Header{Key: "x-event-type", Value: []byte(EventOrderTransitioned)},
		kafka.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
