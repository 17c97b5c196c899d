// Package mercadopago реализует клиент платёжного шлюза Mercado Pago.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/models"
)

// Client — HTTP-клиент платёжного API.
type Client struct {
	accessToken string
	apiURL      string
	httpClient  *http.Client
}

// NewClient создаёт новый клиент Mercado Pago.
func NewClient(accessToken, apiURL string, timeout time.Duration) *Client {
	return &Client{
		accessToken: accessToken,
		apiURL:      apiURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// CreatePayment создаёт PIX-платёж. Ключ идемпотентности защищает от
// двойного создания при повторе запроса.
func (c *Client) CreatePayment(ctx context.Context, reqParams CreatePaymentRequest) (*Payment, error) {
	const op = "mercadopago.CreatePayment"

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/payments", reqParams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("X-Idempotency-Key", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &payment, nil
}

// PaymentStatus возвращает состояние платежа в доменном представлении.
func (c *Client) PaymentStatus(ctx context.Context, paymentID string) (models.PaymentInfo, error) {
	payment, err := c.GetPayment(ctx, paymentID)
	if err != nil {
		return models.PaymentInfo{}, err
	}
	return models.PaymentInfo{
		ID:          strconv.FormatInt(payment.ID, 10),
		Status:      payment.Status,
		Amount:      payment.TransactionAmount,
		Correlation: payment.Metadata,
	}, nil
}

// GetPayment возвращает текущее состояние платежа по его ID.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	const op = "mercadopago.GetPayment"

	if _, err := strconv.ParseInt(paymentID, 10, 64); err != nil {
		return nil, fmt.Errorf("%s: invalid payment id %q: %w", op, paymentID, err)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var payment Payment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &payment, nil
}
