package kafka

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// EventSink публикует события продаж в Kafka. Ключ сообщения — ID продажи,
// поэтому события одной продажи попадают в одну партицию по порядку.
type EventSink struct {
	producer *Producer
	topic    string
}

// NewEventSink создаёт sink для заданного топика.
func NewEventSink(producer *Producer, topic string) *EventSink {
	if topic == "" {
		topic = TopicSalesEvents
	}
	return &EventSink{producer: producer, topic: topic}
}

// Name возвращает имя sink для логов и метрик.
func (s *EventSink) Name() string {
	return "kafka"
}

// Send отправляет событие. SyncProducer не принимает контекст, поэтому
// проверяется только отмена до отправки.
func (s *EventSink) Send(ctx context.Context, event domain.Event) error {
	if s == nil || s.producer == nil {
		return fmt.Errorf("kafka event sink is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.producer.PublishEventWithHeaders(
		s.topic,
		event.SaleID.String(),
		NewSaleEventMessage(event),
		map[string]string{HeaderEventType: string(event.Type)},
	)
}
