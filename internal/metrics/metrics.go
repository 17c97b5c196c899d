// Package metrics регистрирует счётчики Prometheus для движка.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconcileTotal считает исходы сверки платежей.
	ReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_reconcile_total",
		Help: "Reconciliation outcomes by result",
	}, []string{"outcome"})

	// PollTotal считает опросы платёжного шлюза по статусу ответа.
	PollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_payment_polls_total",
		Help: "Payment status polls by observed status",
	}, []string{"status"})

	// SweptTotal считает удалённые свипером истёкшие записи.
	SweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_expired_swept_total",
		Help: "Expired subscription records removed by the sweeper",
	})

	// NotificationsTotal считает опубликованные события уведомлений.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_notifications_total",
		Help: "Notification events published by kind",
	}, []string{"kind"})
)
