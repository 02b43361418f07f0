package order

import (
	"encoding/json"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// EventPayload описывает тело outbox-сообщения о заказе.
type EventPayload struct {
	EventType      string             `json:"event_type"`
	OrderID        string             `json:"order_id"`
	UserID         string             `json:"user_id"`
	Status         string             `json:"status"`
	PreviousStatus string             `json:"previous_status,omitempty"`
	TotalAmount    string             `json:"total_amount"`
	DiscountCode   string             `json:"discount_code,omitempty"`
	Lines          []EventPayloadLine `json:"lines"`
	Deleted        bool               `json:"deleted,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// EventPayloadLine описывает позицию заказа в событии.
type EventPayloadLine struct {
	ProductID    string `json:"product_id"`
	Quantity     int32  `json:"quantity"`
	PricePerUnit string `json:"price_per_unit"`
	Subtotal     string `json:"subtotal"`
}

func marshalOrderEvent(eventType string, order domain.Order, previousStatus string, now time.Time) ([]byte, error) {
	payload := EventPayload{
		EventType:      eventType,
		OrderID:        order.ID,
		UserID:         order.UserID,
		Status:         string(order.Status),
		PreviousStatus: previousStatus,
		TotalAmount:    order.TotalAmount.StringFixed(2),
		DiscountCode:   order.DiscountCode,
		Lines:          make([]EventPayloadLine, 0, len(order.Lines)),
		Deleted:        order.Deleted(),
		OccurredAt:     now,
	}
	for _, line := range order.Lines {
		payload.Lines = append(payload.Lines, EventPayloadLine{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			PricePerUnit: line.PricePerUnit.StringFixed(2),
			Subtotal:     line.Subtotal.StringFixed(2),
		})
	}
	return json.Marshal(payload)
}
