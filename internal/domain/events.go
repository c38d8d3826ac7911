package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType определяет тип события продажи.
type EventType string

const (
	EventTypeSaleCreated   EventType = "sale.created"
	EventTypeSaleModified  EventType = "sale.modified"
	EventTypeSaleCancelled EventType = "sale.cancelled"
	EventTypeItemCancelled EventType = "sale.item_cancelled"
)

// Event — уведомление, публикуемое после успешного сохранения продажи.
type Event struct {
	Type       EventType  `json:"event_type"`
	SaleID     uuid.UUID  `json:"sale_id"`
	SaleNumber string     `json:"sale_number,omitempty"`
	ItemID     *uuid.UUID `json:"item_id,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewSaleCreatedEvent формирует событие SaleCreated.
func NewSaleCreatedEvent(saleID uuid.UUID, saleNumber string) Event {
	return newSaleEvent(EventTypeSaleCreated, saleID, saleNumber)
}

// NewSaleModifiedEvent формирует событие SaleModified.
func NewSaleModifiedEvent(saleID uuid.UUID, saleNumber string) Event {
	return newSaleEvent(EventTypeSaleModified, saleID, saleNumber)
}

// NewSaleCancelledEvent формирует событие SaleCancelled.
func NewSaleCancelledEvent(saleID uuid.UUID, saleNumber string) Event {
	return newSaleEvent(EventTypeSaleCancelled, saleID, saleNumber)
}

// NewItemCancelledEvent формирует событие ItemCancelled.
func NewItemCancelledEvent(saleID, itemID uuid.UUID) Event {
	id := itemID
	return Event{
		Type:       EventTypeItemCancelled,
		SaleID:     saleID,
		ItemID:     &id,
		OccurredAt: time.Now().UTC(),
	}
}

func newSaleEvent(eventType EventType, saleID uuid.UUID, saleNumber string) Event {
	return Event{
		Type:       eventType,
		SaleID:     saleID,
		SaleNumber: saleNumber,
		OccurredAt: time.Now().UTC(),
	}
}
