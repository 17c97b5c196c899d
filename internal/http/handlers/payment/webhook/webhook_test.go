package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/services/reconciler"
)

type MockPoller struct {
	mock.Mock
}

func (m *MockPoller) Trigger(paymentID string) bool {
	args := m.Called(paymentID)
	return args.Bool(0)
}

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, paymentID string) (reconciler.Result, error) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).(reconciler.Result), args.Error(1)
}

func TestWebhookHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name           string
		body           string
		setupMocks     func(*MockPoller, *MockReconciler)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "задача опроса существует — будим её",
			body: `{"action": "payment.updated", "data": {"id": "123"}}`,
			setupMocks: func(p *MockPoller, e *MockReconciler) {
				p.On("Trigger", "123").Return(true)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name: "задачи нет — прямая сверка",
			body: `{"action": "payment.updated", "data": {"id": "123"}}`,
			setupMocks: func(p *MockPoller, e *MockReconciler) {
				p.On("Trigger", "123").Return(false)
				e.On("Reconcile", mock.Anything, "123").
					Return(reconciler.Result{Outcome: reconciler.OutcomeCreated}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name: "ошибка прямой сверки всё равно даёт 200",
			body: `{"action": "payment.updated", "data": {"id": "123"}}`,
			setupMocks: func(p *MockPoller, e *MockReconciler) {
				p.On("Trigger", "123").Return(false)
				e.On("Reconcile", mock.Anything, "123").
					Return(reconciler.Result{Outcome: reconciler.OutcomeFailed}, errors.New("not approved"))
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name:           "событие без id платежа подтверждается без обработки",
			body:           `{"action": "test", "data": {}}`,
			setupMocks:     func(_ *MockPoller, _ *MockReconciler) {},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name:           "некорректное тело",
			body:           `{broken`,
			setupMocks:     func(_ *MockPoller, _ *MockReconciler) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid request body`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poller := new(MockPoller)
			engine := new(MockReconciler)
			tt.setupMocks(poller, engine)

			handler := New(logger, poller, engine)

			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			poller.AssertExpectations(t)
			engine.AssertExpectations(t)
		})
	}
}
