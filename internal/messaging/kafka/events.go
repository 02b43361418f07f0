package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "storefront.order.events"
	TopicDeadLetterQueue = "storefront.dlq"
)

// Kafka headers
const (
	HeaderEventType     = "x-event-type"
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// ErrEnvelopeInvalid означает, что сообщение не похоже на событие outbox.
var ErrEnvelopeInvalid = errors.New("invalid event envelope")

// Envelope описывает формат сообщения в топике событий заказа.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope упаковывает outbox-сообщение для отправки.
func NewEnvelope(msg domain.OutboxMessage, publishedAt time.Time) Envelope {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
		PublishedAt:   publishedAt.UTC(),
	}
}

// IsOrderEvent сообщает, относится ли тип к событиям жизненного цикла заказа.
func IsOrderEvent(eventType string) bool {
	switch eventType {
	case domain.EventOrderCreated, domain.EventOrderEdited, domain.EventOrderStatusChanged, domain.EventOrderDeleted:
		return true
	default:
		return false
	}
}

// ParseEnvelope разбирает сообщение из топика событий.
func ParseEnvelope(message *sarama.ConsumerMessage) (Envelope, error) {
	var env Envelope
	if message == nil {
		return env, fmt.Errorf("%w: nil message", ErrEnvelopeInvalid)
	}
	if err := json.Unmarshal(message.Value, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrEnvelopeInvalid, err)
	}
	if env.ID == "" || env.EventType == "" {
		return env, fmt.Errorf("%w: id and event_type are required", ErrEnvelopeInvalid)
	}
	return env, nil
}

// headerValue возвращает значение заголовка или пустую строку.
func headerValue(headers []*sarama.RecordHeader, key string) string {
	for _, header := range headers {
		if header != nil && string(header.Key) == key {
			return string(header.Value)
		}
	}
	return ""
}
