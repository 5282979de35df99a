package heleket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/rookgm/storefront/config"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/signature"
	"go.uber.org/zap"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// response body limit
const maxResponseSize = 1 << 20

// Client is Heleket payment adapter
type Client struct {
	client        *http.Client
	baseURL       string
	merchant      string
	apiKey        string
	webhookSecret string
	currency      string
	logger        *zap.Logger
}

// NewClient creates new Client instance
func NewClient(cfg config.Heleket, logger *zap.Logger) *Client {
	secret := cfg.WebhookSecret
	if secret == "" {
		secret = cfg.APIKey
	}
	return &Client{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:       cfg.BaseURL,
		merchant:      cfg.Merchant,
		apiKey:        cfg.APIKey,
		webhookSecret: secret,
		currency:      cfg.Currency,
		logger:        logger,
	}
}

// Provider returns models.ProviderHeleket
func (c *Client) Provider() models.Provider {
	return models.ProviderHeleket
}

// Currency returns currency orders paid via Heleket are priced in
func (c *Client) Currency() string {
	return c.currency
}

type apiResponse struct {
	State   int          `json:"state"`
	Message string       `json:"message"`
	Result  *paymentInfo `json:"result"`
}

type paymentInfo struct {
	UUID          string `json:"uuid"`
	OrderID       string `json:"order_id"`
	Amount        string `json:"amount"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
}

// CreateCheckout creates invoice and returns payment page
// 200 + state 0 — счёт создан;
// 401, 403, 422 или state != 0 — запрос отклонён, повтор не поможет;
// 429, 5xx, таймаут — временная ошибка.
func (c *Client) CreateCheckout(ctx context.Context, req models.CheckoutRequest) (*models.PaymentSession, error) {
	order := req.Order
	payload := map[string]string{
		"amount":       order.Total.StringFixed(2),
		"currency":     order.Currency,
		"order_id":     strconv.FormatInt(order.ID, 10),
		"callback_url": req.CallbackURL,
		"url_return":   req.CancelURL,
		"url_success":  req.SuccessURL,
		"description":  fmt.Sprintf("Order #%d", order.ID),
	}

	info, temporary, err := c.do(ctx, "payment", payload)
	if err != nil {
		return nil, models.NewPaymentInitiationError(models.ProviderHeleket, temporary, err)
	}
	if info.UUID == "" || info.URL == "" {
		return nil, models.NewPaymentInitiationError(models.ProviderHeleket, false,
			errors.New("response has no invoice uuid or url"))
	}

	c.logger.Debug("invoice created",
		zap.Int64("order", order.ID),
		zap.String("uuid", info.UUID))

	return &models.PaymentSession{
		Provider:    models.ProviderHeleket,
		Reference:   info.UUID,
		RedirectURL: info.URL,
	}, nil
}

// PaymentStatus asks Heleket for current invoice state of order
func (c *Client) PaymentStatus(ctx context.Context, order *models.Order) (models.PaymentEvent, error) {
	payload := map[string]string{}
	if order.PaymentReference != "" {
		payload["uuid"] = order.PaymentReference
	} else {
		payload["order_id"] = strconv.FormatInt(order.ID, 10)
	}

	info, _, err := c.do(ctx, "payment/info", payload)
	if err != nil {
		return models.PaymentEvent{}, fmt.Errorf("heleket payment info: %w", err)
	}

	return models.PaymentEvent{
		Provider:  models.ProviderHeleket,
		OrderID:   order.ID,
		Outcome:   outcomeFor(info.PaymentStatus),
		Reference: info.UUID,
		PaymentID: info.UUID,
		Source:    models.SourceSweeper,
	}, nil
}

// do sends signed request to Heleket API.
// temporary reports whether the failure may go away on retry.
func (c *Client) do(ctx context.Context, path string, payload map[string]string) (info *paymentInfo, temporary bool, err error) {
	body, err := encode(payload)
	if err != nil {
		return nil, false, err
	}

	endpoint, err := url.JoinPath(c.baseURL, "v1", path)
	if err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("merchant", c.merchant)
	req.Header.Set("sign", signature.Sign(body, c.apiKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, true, err
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, true, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= http.StatusInternalServerError:
		return nil, true, fmt.Errorf("heleket responded %d: %s", resp.StatusCode, respBody)
	default:
		return nil, false, fmt.Errorf("heleket responded %d: %s", resp.StatusCode, respBody)
	}

	apiResp := apiResponse{}
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, false, fmt.Errorf("decode heleket response: %w", err)
	}
	if apiResp.State != 0 || apiResp.Result == nil {
		return nil, false, fmt.Errorf("heleket rejected request: state %d: %s", apiResp.State, apiResp.Message)
	}

	return apiResp.Result, false, nil
}

// encode returns compact JSON with sorted keys, the exact bytes that get signed
func encode(payload map[string]string) ([]byte, error) {
	buf := bytes.Buffer{}
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
