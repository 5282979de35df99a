package heleket

import (
	"github.com/google/go-cmp/cmp"
	"github.com/rookgm/storefront/config"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"testing"
)

func TestClient_ParseWebhook(t *testing.T) {
	c := NewClient(config.Heleket{Merchant: testMerchant, APIKey: testAPIKey}, zap.NewNop())

	tests := []struct {
		name    string
		body    string
		secret  string
		want    models.PaymentEvent
		wantErr error
	}{
		{
			name: "paid",
			body: `{"result":{"uuid":"inv-1","order_id":"42","payment_status":"paid"}}`,
			want: models.PaymentEvent{
				Provider:  models.ProviderHeleket,
				OrderID:   42,
				Outcome:   models.OutcomePaid,
				Reference: "inv-1",
				PaymentID: "inv-1",
				Source:    models.SourceWebhook,
			},
		},
		{
			name: "wrong_amount_is_failed",
			body: `{"result":{"uuid":"inv-1","order_id":"42","payment_status":"wrong_amount"}}`,
			want: models.PaymentEvent{
				Provider:  models.ProviderHeleket,
				OrderID:   42,
				Outcome:   models.OutcomeFailed,
				Reference: "inv-1",
				PaymentID: "inv-1",
				Source:    models.SourceWebhook,
			},
		},
		{
			name: "pending_status_is_unknown",
			body: `{"result":{"uuid":"inv-1","order_id":"42","payment_status":"confirm_check"}}`,
			want: models.PaymentEvent{
				Provider:  models.ProviderHeleket,
				OrderID:   42,
				Outcome:   models.OutcomeUnknown,
				Reference: "inv-1",
				PaymentID: "inv-1",
				Source:    models.SourceWebhook,
			},
		},
		{
			name:    "missing_order_id",
			body:    `{"result":{"uuid":"inv-1","payment_status":"paid"}}`,
			wantErr: models.ErrMissingOrderReference,
		},
		{
			name:    "missing_result",
			body:    `{"state":0}`,
			wantErr: models.ErrPayloadMalformed,
		},
		{
			name:    "not_json",
			body:    `order_id=42`,
			wantErr: models.ErrPayloadMalformed,
		},
		{
			name:    "non_numeric_order_id",
			body:    `{"result":{"uuid":"inv-1","order_id":"A-42","payment_status":"paid"}}`,
			wantErr: models.ErrPayloadMalformed,
		},
		{
			name:    "missing_payment_status",
			body:    `{"result":{"uuid":"inv-1","order_id":"42"}}`,
			wantErr: models.ErrPayloadMalformed,
		},
		{
			name:    "empty_payment_status",
			body:    `{"result":{"uuid":"inv-1","order_id":"42","payment_status":""}}`,
			wantErr: models.ErrPayloadMalformed,
		},
		{
			name:    "missing_uuid",
			body:    `{"result":{"order_id":"42","payment_status":"paid"}}`,
			wantErr: models.ErrPayloadMalformed,
		},
		{
			name:    "wrong_secret",
			body:    `{"result":{"uuid":"inv-1","order_id":"42","payment_status":"paid"}}`,
			secret:  "other-key",
			wantErr: models.ErrSignatureInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secret := testAPIKey
			if tt.secret != "" {
				secret = tt.secret
			}

			got, err := c.ParseWebhook([]byte(tt.body), signature.Sign([]byte(tt.body), secret))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("event mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClient_ParseWebhook_SeparateSecret(t *testing.T) {
	c := NewClient(config.Heleket{Merchant: testMerchant, APIKey: testAPIKey, WebhookSecret: "hook-secret"}, zap.NewNop())
	body := []byte(`{"result":{"uuid":"inv-1","order_id":"42","payment_status":"paid"}}`)

	_, err := c.ParseWebhook(body, signature.Sign(body, "hook-secret"))
	require.NoError(t, err)

	_, err = c.ParseWebhook(body, signature.Sign(body, testAPIKey))
	assert.ErrorIs(t, err, models.ErrSignatureInvalid)

	assert.Equal(t, "sign", c.SignatureHeader())
}
