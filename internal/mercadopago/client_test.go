package mercadopago

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/models"
)

func TestCreatePayment(t *testing.T) {
	var gotIdempotencyKey string
	var gotAuth string
	var gotBody CreatePaymentRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/payments", r.URL.Path)
		gotIdempotencyKey = r.Header.Get("X-Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     123456789,
			"status": StatusPending,
			"point_of_interaction": map[string]any{
				"transaction_data": map[string]any{
					"qr_code":        "pix-code",
					"qr_code_base64": "cGl4LWNvZGU=",
				},
			},
		})
	}))
	t.Cleanup(srv.Close)

	client := NewClient("test-token", srv.URL, 5*time.Second)

	payment, err := client.CreatePayment(context.Background(), CreatePaymentRequest{
		TransactionAmount: 29.9,
		Description:       "VIP Mensal - 30 dias",
		PaymentMethodID:   "pix",
		Metadata:          models.Correlation{UserID: 42, PlanID: 1},
		Payer:             Payer{Email: "cliente@email.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(123456789), payment.ID)
	assert.Equal(t, "pix-code", payment.PointOfInteraction.TransactionData.QRCode)

	assert.NotEmpty(t, gotIdempotencyKey)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, int64(42), gotBody.Metadata.UserID)
	assert.Equal(t, 1, gotBody.Metadata.PlanID)
}

func TestGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payments/123", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                 123,
			"status":             StatusApproved,
			"transaction_amount": 29.9,
			"metadata":           map[string]any{"user_id": 42, "plan_id": 1},
		})
	}))
	t.Cleanup(srv.Close)

	client := NewClient("test-token", srv.URL, 5*time.Second)

	payment, err := client.GetPayment(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, payment.Status)
	assert.Equal(t, int64(42), payment.Metadata.UserID)
}

func TestGetPayment_InvalidIDRejectedLocally(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	t.Cleanup(srv.Close)

	client := NewClient("test-token", srv.URL, 5*time.Second)

	_, err := client.GetPayment(context.Background(), "not-a-number")
	require.Error(t, err)
	assert.False(t, called)
}

func TestPaymentStatus_MapsToDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                 123,
			"status":             StatusApproved,
			"transaction_amount": 29.9,
			"metadata":           map[string]any{"user_id": 42, "plan_id": 1},
		})
	}))
	t.Cleanup(srv.Close)

	client := NewClient("test-token", srv.URL, 5*time.Second)

	info, err := client.PaymentStatus(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "123", info.ID)
	assert.Equal(t, StatusApproved, info.Status)
	assert.Equal(t, 29.9, info.Amount)
	assert.Equal(t, models.Correlation{UserID: 42, PlanID: 1}, info.Correlation)
}

func TestPaymentStatus_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := NewClient("test-token", srv.URL, 5*time.Second)

	_, err := client.PaymentStatus(context.Background(), "123")
	require.Error(t, err)
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(StatusApproved))
	assert.True(t, Terminal(StatusRejected))
	assert.False(t, Terminal(StatusPending))
	assert.False(t, Terminal(StatusInProcess))
}
