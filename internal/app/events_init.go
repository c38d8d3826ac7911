package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/sales/internal/messaging/natsjs"
	"github.com/vladislavdragonenkov/sales/internal/service/events"
	"github.com/vladislavdragonenkov/sales/internal/service/sales"
)

const kafkaClientID = "sales-service"

// initEventSinks собирает приёмники событий. Лог-приёмник есть всегда;
// недоступные брокеры не мешают старту, сервис продолжает работу без них.
func initEventSinks(cfg Config, logger *log.Entry, deps *runtimeDependencies) []events.Sink {
	sinks := []events.Sink{events.NewLogSink(logger.WithField("layer", "events"))}

	producer, err := initKafkaProducer(cfg.Brokers(), logger)
	if err == nil && producer != nil {
		deps.addCloser("kafka-producer", producer.Close)
		sinks = append(sinks, kafka.NewEventSink(producer, cfg.KafkaTopic))
	}

	if cfg.NATSURL != "" {
		sink, err := natsjs.New(natsjs.Config{
			URL:           cfg.NATSURL,
			Stream:        cfg.NATSStream,
			SubjectPrefix: cfg.NATSSubjectPrefix,
			Logger:        logger.WithField("layer", "nats"),
		})
		if err != nil {
			logger.WithError(err).Warn("failed to connect to nats, continuing without nats")
		} else {
			deps.addCloser("nats", sink.Close)
			sinks = append(sinks, sink)
			logger.WithField("url", cfg.NATSURL).Info("nats jetstream sink initialized")
		}
	}
	return sinks
}

// initKafkaProducer инициализирует Kafka producer если brokers не пустой.
// Возвращает nil, nil если brokers пустой.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers, kafkaClientID)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// initProjectionConsumer подписывает проектор read-модели на топик событий.
// Сообщения, которые не удалось обработать, уходят в DLQ.
func initProjectionConsumer(cfg Config, projector *sales.Projector, logger *log.Entry) (*kafka.Consumer, *kafka.Producer, error) {
	brokers := cfg.Brokers()
	dlqProducer, err := initKafkaProducer(brokers, logger)
	if err != nil {
		return nil, nil, err
	}

	consumer, err := kafka.NewConsumerWithDLQ(
		brokers,
		cfg.KafkaGroup,
		[]string{cfg.KafkaTopic},
		kafka.HandleSaleEvents(projector.HandleEvent),
		dlqProducer,
		cfg.EventMaxAttempts,
	)
	if err != nil {
		closeKafka(dlqProducer, logger)
		return nil, nil, err
	}
	logger.WithFields(log.Fields{"group": cfg.KafkaGroup, "topic": cfg.KafkaTopic}).Info("kafka projection consumer initialized")
	return consumer, dlqProducer, nil
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
