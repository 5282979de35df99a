package heleket

import (
	"encoding/json"
	"fmt"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/signature"
	"strconv"
	"strings"
)

// header carrying webhook signature
const signatureHeader = "sign"

// invoice statuses meaning the payment will not be completed
var failedStatuses = map[string]struct{}{
	"fail":         {},
	"cancel":       {},
	"system_fail":  {},
	"wrong_amount": {},
	"refund_fail":  {},
}

type webhookPayload struct {
	Result *webhookResult `json:"result"`
}

type webhookResult struct {
	UUID          string `json:"uuid"`
	OrderID       string `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
}

// SignatureHeader returns name of header with webhook signature
func (c *Client) SignatureHeader() string {
	return signatureHeader
}

// ParseWebhook verifies webhook body and converts it to payment event
func (c *Client) ParseWebhook(body []byte, sig string) (models.PaymentEvent, error) {
	if err := signature.Verify(signature.SchemeHeleket, body, sig, c.webhookSecret); err != nil {
		return models.PaymentEvent{}, err
	}

	payload := webhookPayload{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return models.PaymentEvent{}, fmt.Errorf("%w: %w", models.ErrPayloadMalformed, err)
	}
	if payload.Result == nil {
		return models.PaymentEvent{}, fmt.Errorf("%w: no result object", models.ErrPayloadMalformed)
	}

	res := payload.Result
	ref := strings.TrimSpace(res.OrderID)
	if ref == "" {
		return models.PaymentEvent{}, models.ErrMissingOrderReference
	}
	orderID, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || orderID <= 0 {
		return models.PaymentEvent{}, fmt.Errorf("%w: bad order_id %q", models.ErrPayloadMalformed, ref)
	}
	if strings.TrimSpace(res.PaymentStatus) == "" {
		return models.PaymentEvent{}, fmt.Errorf("%w: no payment_status", models.ErrPayloadMalformed)
	}
	if strings.TrimSpace(res.UUID) == "" {
		return models.PaymentEvent{}, fmt.Errorf("%w: no uuid", models.ErrPayloadMalformed)
	}

	return models.PaymentEvent{
		Provider:  models.ProviderHeleket,
		OrderID:   orderID,
		Outcome:   outcomeFor(res.PaymentStatus),
		Reference: res.UUID,
		PaymentID: res.UUID,
		Source:    models.SourceWebhook,
	}, nil
}

func outcomeFor(status string) models.Outcome {
	if status == "paid" || status == "paid_over" {
		return models.OutcomePaid
	}
	if _, ok := failedStatuses[status]; ok {
		return models.OutcomeFailed
	}
	return models.OutcomeUnknown
}
