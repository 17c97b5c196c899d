package models

import "time"

// Виды событий уведомлений, публикуемых движком в очередь.
const (
	NotificationExpiry    = "expiry"
	NotificationThreshold = "threshold"
	NotificationAdmin     = "admin"
)

// NotificationEvent — сообщение для сервиса доставки уведомлений.
// Движок публикует события best-effort: неудачная публикация логируется
// и не откатывает уже зафиксированное состояние.
type NotificationEvent struct {
	Kind      string    `json:"kind"`
	UserID    int64     `json:"user_id"`
	PlanName  string    `json:"plan_name"`
	EndDate   time.Time `json:"end_date"`
	DaysLeft  int       `json:"days_left"`
	HoursLeft int       `json:"hours_left"`
	Permanent bool      `json:"permanent,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Amount    float64   `json:"amount,omitempty"`
	PaymentID string    `json:"payment_id,omitempty"`
}

// PaymentInfo — состояние платежа, наблюдаемое у платёжного шлюза.
type PaymentInfo struct {
	ID          string
	Status      string
	Amount      float64
	Correlation Correlation
}
