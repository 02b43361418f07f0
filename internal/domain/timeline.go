package domain

import "time"

// Типы событий заказа; они же используются как event_type в outbox.
const (
	EventOrderCreated       = "order.created"
	EventOrderEdited        = "order.edited"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderDeleted       = "order.deleted"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
