package sender

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/models"
)

type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) Send(ctx context.Context, chatID int64, text string) error {
	args := m.Called(ctx, chatID, text)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func marshalEvent(t *testing.T, event models.NotificationEvent) []byte {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func TestSendExpiryNotification(t *testing.T) {
	messenger := new(MockMessenger)
	messenger.On("Send", mock.Anything, int64(42), mock.Anything).Return(nil)

	svc := New(messenger, 999, newNoopLogger())

	body := marshalEvent(t, models.NotificationEvent{
		Kind:     models.NotificationExpiry,
		UserID:   42,
		PlanName: "Mensal",
		EndDate:  time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, svc.SendExpiryNotification(body))

	text := messenger.Calls[0].Arguments.String(2)
	assert.Contains(t, text, "expirou")
	assert.Contains(t, text, "Mensal")
	assert.Contains(t, text, "10/03/2026")
}

func TestSendThresholdNotification(t *testing.T) {
	tests := []struct {
		name         string
		event        models.NotificationEvent
		wantContains string
	}{
		{
			name: "days remaining",
			event: models.NotificationEvent{
				UserID:   42,
				PlanName: "Mensal",
				DaysLeft: 2,
				EndDate:  time.Date(2026, time.March, 12, 12, 0, 0, 0, time.UTC),
			},
			wantContains: "Dias restantes: 2",
		},
		{
			name: "final day shows hours",
			event: models.NotificationEvent{
				UserID:    42,
				PlanName:  "Mensal",
				DaysLeft:  0,
				HoursLeft: 6,
				EndDate:   time.Date(2026, time.March, 10, 18, 0, 0, 0, time.UTC),
			},
			wantContains: "Horas restantes: 6",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messenger := new(MockMessenger)
			messenger.On("Send", mock.Anything, int64(42), mock.Anything).Return(nil)

			svc := New(messenger, 999, newNoopLogger())
			require.NoError(t, svc.SendThresholdNotification(marshalEvent(t, tt.event)))

			text := messenger.Calls[0].Arguments.String(2)
			assert.Contains(t, text, tt.wantContains)
		})
	}
}

func TestSendAdminNotification(t *testing.T) {
	tests := []struct {
		name         string
		event        models.NotificationEvent
		wantContains []string
	}{
		{
			name: "new subscription",
			event: models.NotificationEvent{
				UserID:    42,
				PlanName:  "Mensal",
				Outcome:   "created",
				Amount:    29.9,
				PaymentID: "pay-1",
				EndDate:   time.Date(2026, time.April, 9, 12, 0, 0, 0, time.UTC),
			},
			wantContains: []string{"Nova Assinatura", "Mensal", "R$29.90", "pay-1"},
		},
		{
			name: "renewal",
			event: models.NotificationEvent{
				UserID:    42,
				PlanName:  "Mensal",
				Outcome:   "renewed",
				Amount:    29.9,
				PaymentID: "pay-2",
				EndDate:   time.Date(2026, time.May, 9, 12, 0, 0, 0, time.UTC),
			},
			wantContains: []string{"Renovação", "pay-2"},
		},
		{
			name: "expiry processing error",
			event: models.NotificationEvent{
				UserID:   42,
				PlanName: "Mensal",
				Outcome:  "expiry_error",
				EndDate:  time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
			},
			wantContains: []string{"Erro ao processar expiração", "10/03/2026"},
		},
		{
			name: "permanent plan",
			event: models.NotificationEvent{
				UserID:    42,
				PlanName:  "Vitalicio",
				Outcome:   "created",
				Amount:    299.9,
				PaymentID: "pay-3",
				Permanent: true,
			},
			wantContains: []string{"Permanente"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messenger := new(MockMessenger)
			// Административные события уходят в чат администратора.
			messenger.On("Send", mock.Anything, int64(999), mock.Anything).Return(nil)

			svc := New(messenger, 999, newNoopLogger())
			require.NoError(t, svc.SendAdminNotification(marshalEvent(t, tt.event)))

			text := messenger.Calls[0].Arguments.String(2)
			for _, want := range tt.wantContains {
				assert.Contains(t, text, want)
			}
		})
	}
}

func TestSender_MalformedBodyReturnsError(t *testing.T) {
	svc := New(new(MockMessenger), 999, newNoopLogger())

	assert.Error(t, svc.SendExpiryNotification([]byte("{not json")))
	assert.Error(t, svc.SendThresholdNotification([]byte("{not json")))
	assert.Error(t, svc.SendAdminNotification([]byte("{not json")))
}
