package notifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/models"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/store"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Plan(id int) (models.Plan, error) {
	args := m.Called(id)
	return args.Get(0).(models.Plan), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(routingkey string, message any) error {
	args := m.Called(routingkey, message)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newTestStore(t *testing.T, subs ...models.Subscription) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "subscriptions.json"))
	require.NoError(t, err)
	if len(subs) > 0 {
		require.NoError(t, st.Update(func(existing []models.Subscription) ([]models.Subscription, error) {
			return append(existing, subs...), nil
		}))
	}
	return st
}

func TestThreshold(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		endDate  time.Time
		wantFlag string
		wantOK   bool
	}{
		{
			name:     "six hours left",
			endDate:  now.Add(6 * time.Hour),
			wantFlag: "notified_1",
			wantOK:   true,
		},
		{
			name:     "one day left",
			endDate:  now.Add(36 * time.Hour),
			wantFlag: "notified_1",
			wantOK:   true,
		},
		{
			name:     "two days left",
			endDate:  now.Add(2*24*time.Hour + time.Hour),
			wantFlag: "notified_2",
			wantOK:   true,
		},
		{
			name:     "three days left",
			endDate:  now.Add(3*24*time.Hour + time.Hour),
			wantFlag: "notified_3",
			wantOK:   true,
		},
		{
			name:    "four days left is outside all thresholds",
			endDate: now.Add(4*24*time.Hour + time.Hour),
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag, _, _, ok := threshold(models.Subscription{EndDate: tt.endDate}, now)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantFlag, flag)
			}
		})
	}
}

func TestNotify_PublishesAndSetsFlagOnce(t *testing.T) {
	now := time.Now()
	st := newTestStore(t, models.Subscription{
		UserID:    42,
		PlanID:    1,
		PaymentID: "pay-1",
		EndDate:   now.Add(2*24*time.Hour + time.Hour),
	})

	catalog := new(MockCatalog)
	catalog.On("Plan", 1).Return(models.Plan{ID: 1, Name: "Mensal"}, nil)
	publisher := new(MockPublisher)
	publisher.On("Publish", models.NotificationThreshold, mock.Anything).Return(nil)

	svc := New(st, catalog, publisher, newNoopLogger())

	sent, err := svc.Notify(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	// Флаг взведён и сохранён.
	var sub models.Subscription
	require.NoError(t, st.View(func(subs []models.Subscription) error {
		sub = subs[0]
		return nil
	}))
	assert.True(t, sub.Notified2)
	assert.False(t, sub.Notified1)

	// Повторный проход не шлёт то же уведомление снова.
	sent, err = svc.Notify(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestNotify_SkipsPermanentAndExpired(t *testing.T) {
	now := time.Now()
	st := newTestStore(t,
		models.Subscription{UserID: 1, PlanID: 1, PaymentID: "pay-perm", EndDate: models.PermanentEndDate, IsPermanent: true},
		models.Subscription{UserID: 2, PlanID: 1, PaymentID: "pay-expired", EndDate: now.AddDate(0, 0, -1)},
	)

	publisher := new(MockPublisher)
	svc := New(st, new(MockCatalog), publisher, newNoopLogger())

	sent, err := svc.Notify(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestNotify_FlagSetEvenWhenPublishFails(t *testing.T) {
	now := time.Now()
	st := newTestStore(t, models.Subscription{
		UserID:    42,
		PlanID:    1,
		PaymentID: "pay-1",
		EndDate:   now.Add(6 * time.Hour),
	})

	catalog := new(MockCatalog)
	catalog.On("Plan", 1).Return(models.Plan{ID: 1, Name: "Mensal"}, nil)
	publisher := new(MockPublisher)
	publisher.On("Publish", models.NotificationThreshold, mock.Anything).Return(errors.New("broker down"))

	svc := New(st, catalog, publisher, newNoopLogger())

	_, err := svc.Notify(context.Background(), now)
	require.NoError(t, err)

	// Попытка была: флаг взведён, шторм повторов исключён.
	var sub models.Subscription
	require.NoError(t, st.View(func(subs []models.Subscription) error {
		sub = subs[0]
		return nil
	}))
	assert.True(t, sub.Notified1)
}

func TestNotify_EventCarriesPlanNameAndTimeLeft(t *testing.T) {
	now := time.Now()
	st := newTestStore(t, models.Subscription{
		UserID:    42,
		PlanID:    1,
		PaymentID: "pay-1",
		EndDate:   now.Add(3*24*time.Hour + 2*time.Hour),
	})

	catalog := new(MockCatalog)
	catalog.On("Plan", 1).Return(models.Plan{ID: 1, Name: "Mensal"}, nil)

	var captured models.NotificationEvent
	publisher := new(MockPublisher)
	publisher.On("Publish", models.NotificationThreshold, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(models.NotificationEvent)
		}).Return(nil)

	svc := New(st, catalog, publisher, newNoopLogger())

	_, err := svc.Notify(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, models.NotificationThreshold, captured.Kind)
	assert.Equal(t, int64(42), captured.UserID)
	assert.Equal(t, "Mensal", captured.PlanName)
	assert.Equal(t, 3, captured.DaysLeft)
}

func TestNotify_EachThresholdFiresIndependently(t *testing.T) {
	base := time.Now()
	st := newTestStore(t, models.Subscription{
		UserID:    42,
		PlanID:    1,
		PaymentID: "pay-1",
		EndDate:   base.Add(3*24*time.Hour + 2*time.Hour),
	})

	catalog := new(MockCatalog)
	catalog.On("Plan", 1).Return(models.Plan{ID: 1, Name: "Mensal"}, nil)
	publisher := new(MockPublisher)
	publisher.On("Publish", models.NotificationThreshold, mock.Anything).Return(nil)

	svc := New(st, catalog, publisher, newNoopLogger())

	// Подписка проживает пороги 3, 2 и 1 день: три отдельных уведомления.
	for _, offset := range []time.Duration{0, 24 * time.Hour, 48 * time.Hour} {
		_, err := svc.Notify(context.Background(), base.Add(offset))
		require.NoError(t, err)
	}
	publisher.AssertNumberOfCalls(t, "Publish", 3)

	var sub models.Subscription
	require.NoError(t, st.View(func(subs []models.Subscription) error {
		sub = subs[0]
		return nil
	}))
	assert.True(t, sub.Notified1)
	assert.True(t, sub.Notified2)
	assert.True(t, sub.Notified3)
}
