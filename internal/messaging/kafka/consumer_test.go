package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

type mockConsumerGroup struct {
	consumeFn func(context.Context, []string, sarama.ConsumerGroupHandler) error
	errorsCh  chan error
	closeFn   func() error
}

func (m *mockConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, topics, handler)
	}
	return nil
}

func (m *mockConsumerGroup) Errors() <-chan error {
	return m.errorsCh
}

func (m *mockConsumerGroup) Close() error {
	if m.closeFn != nil {
		return m.closeFn()
	}
	if m.errorsCh != nil {
		close(m.errorsCh)
	}
	return nil
}

func (m *mockConsumerGroup) Pause(map[string][]int32)  {}
func (m *mockConsumerGroup) Resume(map[string][]int32) {}
func (m *mockConsumerGroup) PauseAll()                 {}
func (m *mockConsumerGroup) ResumeAll()                {}

type mockSession struct {
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func (m *mockSession) Claims() map[string][]int32               { return nil }
func (m *mockSession) MemberID() string                         { return "member" }
func (m *mockSession) GenerationID() int32                      { return 1 }
func (m *mockSession) MarkOffset(string, int32, int64, string)  {}
func (m *mockSession) Commit()                                  {}
func (m *mockSession) ResetOffset(string, int32, int64, string) {}
func (m *mockSession) Context() context.Context                 { return m.ctx }
func (m *mockSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	m.marked = append(m.marked, msg)
}

type mockClaim struct {
	topic     string
	partition int32
	messages  chan *sarama.ConsumerMessage
}

func (m *mockClaim) Topic() string                            { return m.topic }
func (m *mockClaim) Partition() int32                         { return m.partition }
func (m *mockClaim) InitialOffset() int64                     { return 0 }
func (m *mockClaim) HighWaterMarkOffset() int64               { return 0 }
func (m *mockClaim) Messages() <-chan *sarama.ConsumerMessage { return m.messages }

func noopHandler(context.Context, *sarama.ConsumerMessage) error { return nil }

// saleMessage строит сообщение sales.events; retries пишется в x-retry-count, если не пуст.
func saleMessage(saleID uuid.UUID, retries string) *sarama.ConsumerMessage {
	msg := &sarama.ConsumerMessage{
		Topic: TopicSalesEvents,
		Key:   []byte(saleID.String()),
		Value: []byte(`{"event_type":"sale.modified","sale_id":"` + saleID.String() + `"}`),
	}
	if retries != "" {
		msg.Headers = []*sarama.RecordHeader{{Key: []byte(HeaderRetryCount), Value: []byte(retries)}}
	}
	return msg
}

func TestNewConsumerUnreachableBrokers(t *testing.T) {
	_, err := NewConsumer([]string{"invalid-broker:9092"}, "sales-projector", []string{TopicSalesEvents}, noopHandler)
	require.Error(t, err)

	_, err = NewConsumerWithDLQ([]string{"invalid-broker:9092"}, "sales-projector", []string{TopicSalesEvents}, noopHandler, nil, 3)
	require.Error(t, err)
}

func TestConsumerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errorsCh := make(chan error, 1)
	var topics []string
	group := &mockConsumerGroup{
		errorsCh: errorsCh,
		consumeFn: func(_ context.Context, got []string, _ sarama.ConsumerGroupHandler) error {
			topics = got
			cancel()
			return nil
		},
	}
	consumer := &Consumer{
		consumer: group,
		topics:   []string{TopicSalesEvents},
		handler:  noopHandler,
		logger:   log.WithField("test", "consumer"),
	}

	// ошибка группы только логируется
	errorsCh <- errors.New("rebalance failed")
	require.NoError(t, consumer.Start(ctx))
	require.NoError(t, consumer.Stop())
	require.Equal(t, []string{TopicSalesEvents}, topics)

	failing := &Consumer{
		consumer: &mockConsumerGroup{errorsCh: make(chan error), closeFn: func() error { return errors.New("close failed") }},
		logger:   log.WithField("test", "stop"),
	}
	require.Error(t, failing.Stop())
}

func TestConsumeClaimMarksOnlyHandledMessages(t *testing.T) {
	okID, badID := uuid.New(), uuid.New()
	consumer := &Consumer{
		handler: HandleSaleEvents(func(_ context.Context, event domain.Event) error {
			if event.SaleID == badID {
				return errors.New("projection failed")
			}
			return nil
		}),
		logger:     log.WithField("test", "claim"),
		maxRetries: 1,
	}

	session := &mockSession{ctx: context.Background()}
	claim := &mockClaim{topic: TopicSalesEvents, messages: make(chan *sarama.ConsumerMessage, 2)}
	claim.messages <- saleMessage(badID, "")
	claim.messages <- saleMessage(okID, "")
	close(claim.messages)

	require.NoError(t, consumer.ConsumeClaim(session, claim))
	require.Len(t, session.marked, 1)
	require.Equal(t, okID.String(), string(session.marked[0].Key))
}

func TestHandleMessageWithRetry(t *testing.T) {
	tests := []struct {
		name         string
		retries      string
		failures     int
		dlq          func(*mocks.SyncProducer)
		wantErr      bool
		wantAttempts int
	}{
		{name: "first attempt succeeds", wantAttempts: 1},
		{name: "recovers within budget", failures: 2, wantAttempts: 3},
		{name: "header consumes budget", retries: "1", failures: 5, wantErr: true, wantAttempts: 2},
		{name: "exhausted without dlq", retries: "3", failures: 5, wantErr: true, wantAttempts: 1},
		{
			name: "exhausted goes to dlq", retries: "3", failures: 5, wantAttempts: 1,
			dlq: func(p *mocks.SyncProducer) { p.ExpectSendMessageAndSucceed() },
		},
		{
			name: "dlq publish fails", retries: "3", failures: 5, wantErr: true, wantAttempts: 1,
			dlq: func(p *mocks.SyncProducer) { p.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			consumer := &Consumer{
				handler: func(context.Context, *sarama.ConsumerMessage) error {
					attempts++
					if attempts <= tt.failures {
						return errors.New("store unavailable")
					}
					return nil
				},
				logger:     log.WithField("test", "retry"),
				maxRetries: 3,
			}
			if tt.dlq != nil {
				producer := mocks.NewSyncProducer(t, nil)
				tt.dlq(producer)
				consumer.dlqProducer = &Producer{producer: producer, logger: log.WithField("test", "dlq")}
				t.Cleanup(func() { require.NoError(t, producer.Close()) })
			}

			err := consumer.handleMessageWithRetry(context.Background(), saleMessage(uuid.New(), tt.retries))
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantAttempts, attempts)
		})
	}
}

func TestGetRetryCount(t *testing.T) {
	consumer := &Consumer{}
	for raw, want := range map[string]int{"": 0, "5": 5, "bad": 0} {
		require.Equal(t, want, consumer.getRetryCount(saleMessage(uuid.New(), raw)), "header %q", raw)
	}
}

func TestParseSaleEvent(t *testing.T) {
	saleID := uuid.New()
	valid := &sarama.ConsumerMessage{Value: []byte(`{"event_type":"sale.created","sale_id":"` + saleID.String() + `","sale_number":"S-1"}`)}
	event, err := ParseSaleEvent(valid)
	if err != nil {
		t.Fatalf("ParseSaleEvent failed: %v", err)
	}
	if event.Type != domain.EventTypeSaleCreated || event.SaleID != saleID || event.SaleNumber != "S-1" {
		t.Fatalf("unexpected event: %+v", event)
	}

	if _, err := ParseSaleEvent(&sarama.ConsumerMessage{Value: []byte("{")}); err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if _, err := ParseSaleEvent(&sarama.ConsumerMessage{Value: []byte(`{"event_type":"sale.created"}`)}); err == nil {
		t.Fatal("expected error for missing sale id")
	}
}

func TestHandleSaleEvents(t *testing.T) {
	saleID := uuid.New()
	var got []domain.Event
	handler := HandleSaleEvents(func(_ context.Context, event domain.Event) error {
		got = append(got, event)
		return nil
	})

	msg := &sarama.ConsumerMessage{Value: []byte(`{"event_type":"sale.cancelled","sale_id":"` + saleID.String() + `"}`)}
	if err := handler(context.Background(), msg); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if len(got) != 1 || got[0].Type != domain.EventTypeSaleCancelled {
		t.Fatalf("unexpected events: %+v", got)
	}

	if err := handler(context.Background(), &sarama.ConsumerMessage{Value: []byte("garbage")}); err == nil {
		t.Fatal("expected parse error to reach the consumer")
	}
	if len(got) != 1 {
		t.Fatal("malformed message must not reach the sale handler")
	}
}

func TestHandleMessageWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	consumer := &Consumer{
		handler: func(context.Context, *sarama.ConsumerMessage) error {
			attempts++
			cancel()
			return errors.New("temporary")
		},
		logger:     log.WithField("test", "retry-cancel"),
		maxRetries: 5,
		retryDelay: time.Hour,
	}
	err := consumer.handleMessageWithRetry(ctx, &sarama.ConsumerMessage{Topic: "topic"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt before cancellation, got %d", attempts)
	}
}

func TestSendToDLQ(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicDeadLetterQueue {
			return errors.New("unexpected topic " + msg.Topic)
		}
		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[string(h.Key)] = string(h.Value)
		}
		if headers[HeaderOriginalTopic] != TopicSalesEvents || headers[HeaderErrorMessage] != "boom" {
			return errors.New("missing dlq headers")
		}
		return nil
	})

	consumer := &Consumer{
		dlqProducer: &Producer{producer: producer, logger: log.WithField("test", "send-dlq")},
		logger:      log.WithField("test", "consumer-send-dlq"),
		maxRetries:  3,
	}

	require.NoError(t, consumer.sendToDLQ(saleMessage(uuid.New(), "3"), errors.New("boom")))
	require.NoError(t, producer.Close())
}

func TestConsumeClaimStopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumer := &Consumer{
		handler:    func(context.Context, *sarama.ConsumerMessage) error { return nil },
		logger:     log.WithField("test", "claim-stop"),
		maxRetries: 1,
	}
	session := &mockSession{ctx: ctx}
	claim := &mockClaim{topic: "topic", partition: 0, messages: make(chan *sarama.ConsumerMessage)}

	done := make(chan struct{})
	go func() {
		_ = consumer.ConsumeClaim(session, claim)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not stop after context cancellation")
	}
}
