package rabbitmq

import "github.com/magabrotheeeer/vip-gatekeeper/internal/models"

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди движка: уведомления об
// истечении, пороговые напоминания и события для администратора.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.expiry", RoutingKey: models.NotificationExpiry},
		{QueueName: "notifications.threshold", RoutingKey: models.NotificationThreshold},
		{QueueName: "notifications.admin", RoutingKey: models.NotificationAdmin},
	}
}
