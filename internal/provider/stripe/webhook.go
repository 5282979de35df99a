package stripe

import (
	"encoding/json"
	"fmt"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/signature"
	stripeapi "github.com/stripe/stripe-go/v76"
	"strconv"
	"strings"
)

const signatureHeader = "Stripe-Signature"

// SignatureHeader returns name of header with webhook signature
func (c *Client) SignatureHeader() string {
	return signatureHeader
}

// ParseWebhook verifies webhook body and converts it to payment event.
// Only checkout.session.completed refers to an order, other event types are
// returned with unknown outcome and no order.
func (c *Client) ParseWebhook(body []byte, sig string) (models.PaymentEvent, error) {
	if err := signature.Verify(signature.SchemeStripe, body, sig, c.webhookSecret); err != nil {
		return models.PaymentEvent{}, err
	}

	event := stripeapi.Event{}
	if err := json.Unmarshal(body, &event); err != nil {
		return models.PaymentEvent{}, fmt.Errorf("%w: %w", models.ErrPayloadMalformed, err)
	}
	if event.Type == "" {
		return models.PaymentEvent{}, fmt.Errorf("%w: event has no type", models.ErrPayloadMalformed)
	}

	if event.Type != stripeapi.EventTypeCheckoutSessionCompleted {
		return models.PaymentEvent{
			Provider: models.ProviderStripe,
			Outcome:  models.OutcomeUnknown,
			Source:   models.SourceWebhook,
		}, nil
	}

	if event.Data == nil || len(event.Data.Raw) == 0 {
		return models.PaymentEvent{}, fmt.Errorf("%w: event has no object", models.ErrPayloadMalformed)
	}
	sess := stripeapi.CheckoutSession{}
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return models.PaymentEvent{}, fmt.Errorf("%w: %w", models.ErrPayloadMalformed, err)
	}

	ref := strings.TrimSpace(sess.Metadata[orderIDKey])
	if ref == "" {
		ref = strings.TrimSpace(sess.ClientReferenceID)
	}
	if ref == "" {
		return models.PaymentEvent{}, models.ErrMissingOrderReference
	}
	orderID, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || orderID <= 0 {
		return models.PaymentEvent{}, fmt.Errorf("%w: bad order_id %q", models.ErrPayloadMalformed, ref)
	}

	paymentID := ""
	if sess.PaymentIntent != nil {
		paymentID = sess.PaymentIntent.ID
	}

	return models.PaymentEvent{
		Provider:  models.ProviderStripe,
		OrderID:   orderID,
		Outcome:   models.OutcomePaid,
		Reference: sess.ID,
		PaymentID: paymentID,
		Source:    models.SourceWebhook,
	}, nil
}
