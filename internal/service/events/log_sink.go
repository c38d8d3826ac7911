package events

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// LogSink пишет события в лог. Используется, когда брокер не настроен.
type LogSink struct {
	logger *log.Entry
}

// NewLogSink создаёт sink поверх logger; nil означает стандартный logger.
func NewLogSink(logger *log.Entry) *LogSink {
	if logger == nil {
		logger = log.WithField("component", "event-log")
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Send(_ context.Context, event domain.Event) error {
	fields := log.Fields{
		"event_type":  event.Type,
		"sale_id":     event.SaleID,
		"occurred_at": event.OccurredAt,
	}
	if event.SaleNumber != "" {
		fields["sale_number"] = event.SaleNumber
	}
	if event.ItemID != nil {
		fields["item_id"] = *event.ItemID
	}
	s.logger.WithFields(fields).Info("sale event")
	return nil
}
