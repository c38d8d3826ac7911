package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// Topics для Kafka
const (
	TopicSalesEvents     = "sales.events"
	TopicDeadLetterQueue = "sales.events.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers
const (
	HeaderEventType     = "x-event-type"
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// SaleEventMessage — формат события продажи в топике.
type SaleEventMessage struct {
	EventID    string           `json:"event_id"`
	EventType  domain.EventType `json:"event_type"`
	SaleID     uuid.UUID        `json:"sale_id"`
	SaleNumber string           `json:"sale_number,omitempty"`
	ItemID     *uuid.UUID       `json:"item_id,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewSaleEventMessage оборачивает доменное событие для отправки.
func NewSaleEventMessage(event domain.Event) SaleEventMessage {
	return SaleEventMessage{
		EventID:    uuid.NewString(),
		EventType:  event.Type,
		SaleID:     event.SaleID,
		SaleNumber: event.SaleNumber,
		ItemID:     event.ItemID,
		OccurredAt: event.OccurredAt,
	}
}

// Event возвращает доменное событие.
func (m SaleEventMessage) Event() domain.Event {
	return domain.Event{
		Type:       m.EventType,
		SaleID:     m.SaleID,
		SaleNumber: m.SaleNumber,
		ItemID:     m.ItemID,
		OccurredAt: m.OccurredAt,
	}
}

// ParseSaleEvent парсит событие продажи из сообщения
func ParseSaleEvent(message *sarama.ConsumerMessage) (domain.Event, error) {
	var msg SaleEventMessage
	if err := json.Unmarshal(message.Value, &msg); err != nil {
		return domain.Event{}, fmt.Errorf("failed to unmarshal sale event: %w", err)
	}
	if msg.EventType == "" || msg.SaleID == uuid.Nil {
		return domain.Event{}, fmt.Errorf("sale event without type or sale id")
	}
	return msg.Event(), nil
}
