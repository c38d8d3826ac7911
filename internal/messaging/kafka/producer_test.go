package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageAndSucceed()

	event := NewSaleEventMessage(domain.NewSaleCreatedEvent(uuid.New(), "S-001"))
	if err := producer.PublishEvent(TopicSalesEvents, event.SaleID.String(), event); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	event := NewSaleEventMessage(domain.NewSaleCancelledEvent(uuid.New(), "S-002"))
	if err := producer.PublishEvent(TopicSalesEvents, event.SaleID.String(), event); err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := &Producer{producer: mockProducer, logger: log.WithField("component", "kafka-producer-test")}

	if err := producer.PublishEvent(TopicSalesEvents, "k", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewSaleEventMessage(t *testing.T) {
	saleID := uuid.New()
	itemID := uuid.New()
	event := domain.NewItemCancelledEvent(saleID, itemID)

	msg := NewSaleEventMessage(event)

	if msg.EventID == "" {
		t.Error("event id should be generated")
	}
	if msg.EventType != domain.EventTypeItemCancelled {
		t.Errorf("expected event type %s, got %s", domain.EventTypeItemCancelled, msg.EventType)
	}
	if msg.SaleID != saleID {
		t.Errorf("expected sale id %s, got %s", saleID, msg.SaleID)
	}
	if msg.ItemID == nil || *msg.ItemID != itemID {
		t.Error("item id not set correctly")
	}
	if time.Since(msg.OccurredAt) > time.Second {
		t.Error("occurred_at should be close to current time")
	}
	if back := msg.Event(); back.Type != event.Type || back.SaleID != saleID || *back.ItemID != itemID {
		t.Errorf("round trip lost data: %+v", back)
	}
}

func TestEventSink_Send(t *testing.T) {
	saleID := uuid.New()
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicSalesEvents {
			t.Errorf("unexpected topic %s", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != saleID.String() {
			t.Errorf("message must be keyed by sale id, got %s", key)
		}
		var hasType bool
		for _, h := range msg.Headers {
			if string(h.Key) == HeaderEventType && string(h.Value) == string(domain.EventTypeSaleModified) {
				hasType = true
			}
		}
		if !hasType {
			t.Error("event type header is missing")
		}

		raw, _ := msg.Value.Encode()
		var decoded SaleEventMessage
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Errorf("payload is not a sale event: %v", err)
		}
		if decoded.SaleNumber != "S-010" {
			t.Errorf("unexpected sale number %q", decoded.SaleNumber)
		}
		return nil
	})

	sink := NewEventSink(&Producer{producer: mockProducer, logger: log.WithField("test", "sink")}, "")
	if sink.Name() != "kafka" {
		t.Fatalf("unexpected sink name %q", sink.Name())
	}
	if err := sink.Send(context.Background(), domain.NewSaleModifiedEvent(saleID, "S-010")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEventSink_SendCancelledContext(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	sink := NewEventSink(&Producer{producer: mockProducer, logger: log.WithField("test", "sink")}, TopicSalesEvents)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.Send(ctx, domain.NewSaleCreatedEvent(uuid.New(), "S-1")); err == nil {
		t.Fatal("expected context error")
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}

	var empty *EventSink
	if err := empty.Send(context.Background(), domain.Event{}); err == nil {
		t.Fatal("expected error for nil sink")
	}
}
