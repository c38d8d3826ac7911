// Package natsjs публикует события продаж в NATS JetStream.
package natsjs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

const (
	defaultStream        = "SALES"
	defaultSubjectPrefix = "sales."

	headerEventType = "x-event-type"
)

// jetStream — часть nats.JetStreamContext, которой пользуется sink.
type jetStream interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// Config описывает подключение к JetStream.
type Config struct {
	URL           string
	Stream        string
	SubjectPrefix string
	Conn          *nats.Conn
	Logger        *log.Entry
}

// Sink отправляет каждое событие в subject <prefix><event_type>.
type Sink struct {
	js     jetStream
	conn   *nats.Conn
	owns   bool
	cfg    Config
	logger *log.Entry
}

// New подключается к NATS и создаёт stream, если его нет.
func New(cfg Config) (*Sink, error) {
	conn := cfg.Conn
	owns := false
	if conn == nil {
		url := cfg.URL
		if url == "" {
			url = nats.DefaultURL
		}
		var err error
		conn, err = nats.Connect(url, nats.Name("sales-service"))
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		owns = true
	}

	js, err := conn.JetStream()
	if err != nil {
		if owns {
			conn.Close()
		}
		return nil, fmt.Errorf("init jetstream: %w", err)
	}

	sink := newSink(js, cfg)
	sink.conn = conn
	sink.owns = owns
	if err := sink.ensureStream(); err != nil {
		_ = sink.Close()
		return nil, err
	}
	return sink, nil
}

func newSink(js jetStream, cfg Config) *Sink {
	if cfg.Stream == "" {
		cfg.Stream = defaultStream
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = defaultSubjectPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = log.WithField("component", "nats-sink")
	}
	return &Sink{js: js, cfg: cfg, logger: cfg.Logger}
}

// Name возвращает имя sink для логов и метрик.
func (s *Sink) Name() string {
	return "nats"
}

// Send публикует событие и ждёт подтверждения от JetStream.
func (s *Sink) Send(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal sale event: %w", err)
	}

	msg := nats.NewMsg(s.subject(event.Type))
	msg.Data = data
	msg.Header.Set(headerEventType, string(event.Type))

	ack, err := s.js.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}

	s.logger.WithFields(log.Fields{
		"subject":  msg.Subject,
		"stream":   ack.Stream,
		"sequence": ack.Sequence,
	}).Debug("event published to jetstream")
	return nil
}

// Close закрывает соединение, если sink открыл его сам.
func (s *Sink) Close() error {
	if s.owns && s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func (s *Sink) subject(eventType domain.EventType) string {
	return s.cfg.SubjectPrefix + string(eventType)
}

func (s *Sink) ensureStream() error {
	_, err := s.js.StreamInfo(s.cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) && !strings.Contains(err.Error(), "stream not found") {
		return fmt.Errorf("stream info %s: %w", s.cfg.Stream, err)
	}

	_, err = s.js.AddStream(&nats.StreamConfig{
		Name:      s.cfg.Stream,
		Subjects:  []string{s.cfg.SubjectPrefix + ">"},
		Retention: nats.LimitsPolicy,
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", s.cfg.Stream, err)
	}
	s.logger.WithField("stream", s.cfg.Stream).Info("jetstream stream created")
	return nil
}
