// Package models содержит доменные структуры движка VIP-подписок:
// тарифные планы, записи подписок и события уведомлений.
package models

import "time"

// PermanentEndDate — сентинельная дата окончания для бессрочных планов.
// Запись с такой датой никогда не рассматривается свипером как истёкшая.
var PermanentEndDate = time.Date(2099, time.December, 31, 0, 0, 0, 0, time.UTC)

// PermanentDuration — значение duration_days в каталоге, означающее бессрочный план.
const PermanentDuration = -1

// Plan представляет тарифный план VIP-доступа из каталога.
// Каталог перечитывается на каждом решении, поэтому структура
// неизменяема в пределах одной операции.
type Plan struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	DurationDays int     `json:"duration_days"` // -1 означает бессрочный план
	Groups       []int64 `json:"groups"`        // идентификаторы групп, куда выдаётся доступ
}

// IsPermanent сообщает, является ли план бессрочным.
func (p Plan) IsPermanent() bool {
	return p.DurationDays == PermanentDuration
}

// Subscription представляет запись подписки в хранилище.
// PaymentID служит ключом идемпотентности: одна запись на платёж, навсегда.
type Subscription struct {
	UserID          int64     `json:"user_id"`
	PlanID          int       `json:"plan_id"`
	EndDate         time.Time `json:"end_date"`
	PaymentMethod   string    `json:"payment_method"`
	PaymentStatus   string    `json:"payment_status"`
	PaymentID       string    `json:"payment_id"`
	IsPermanent     bool      `json:"is_permanent"`
	Notified1       bool      `json:"notified_1"`
	Notified2       bool      `json:"notified_2"`
	Notified3       bool      `json:"notified_3"`
	RenewalNotified bool      `json:"renewal_notified"`
}

// Active сообщает, действует ли подписка на момент now.
func (s Subscription) Active(now time.Time) bool {
	return s.IsPermanent || s.EndDate.After(now)
}

// Correlation связывает внешний платёж с внутренним решением.
// Передаётся через metadata платёжного шлюза, а не строкой с разделителем.
type Correlation struct {
	UserID int64 `json:"user_id"`
	PlanID int   `json:"plan_id"`
}
