package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

const (
	defaultBufferSize     = 256
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	defaultDrainTimeout   = 5 * time.Second
)

var (
	eventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_events_dispatched_total",
		Help: "Total number of sale event deliveries grouped by sink and result.",
	}, []string{"sink", "result"})
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_events_dropped_total",
		Help: "Total number of sale events dropped because the dispatch queue was full.",
	})
	eventsQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sales_events_queue_depth",
		Help: "Current number of sale events waiting for dispatch.",
	})
)

// Sink доставляет событие во внешнюю систему (лог, Kafka, NATS).
type Sink interface {
	Name() string
	Send(ctx context.Context, event domain.Event) error
}

// DispatcherOptions задаёт параметры диспетчера.
type DispatcherOptions struct {
	Logger         *log.Entry
	BufferSize     int
	MaxAttempts    int
	RetryBaseDelay time.Duration
	DrainTimeout   time.Duration
}

// Option настраивает Dispatcher.
type Option func(*DispatcherOptions)

// WithLogger задаёт logger для диспетчера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *DispatcherOptions) {
		opts.Logger = logger
	}
}

// WithBufferSize задаёт ёмкость очереди событий.
func WithBufferSize(size int) Option {
	return func(opts *DispatcherOptions) {
		opts.BufferSize = size
	}
}

// WithMaxAttempts задаёт число попыток доставки в один sink.
func WithMaxAttempts(maxAttempts int) Option {
	return func(opts *DispatcherOptions) {
		opts.MaxAttempts = maxAttempts
	}
}

// WithRetryBaseDelay задаёт базовый delay для exponential backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(opts *DispatcherOptions) {
		opts.RetryBaseDelay = delay
	}
}

// WithDrainTimeout ограничивает досылку очереди после остановки.
func WithDrainTimeout(timeout time.Duration) Option {
	return func(opts *DispatcherOptions) {
		opts.DrainTimeout = timeout
	}
}

// Dispatcher принимает события без блокировки вызывающего и доставляет их
// во все sink из отдельной горутины. Ошибки доставки только логируются.
type Dispatcher struct {
	sinks          []Sink
	queue          chan domain.Event
	logger         *log.Entry
	maxAttempts    int
	retryBaseDelay time.Duration
	drainTimeout   time.Duration
	dropped        atomic.Int64
}

var _ domain.EventPublisher = (*Dispatcher)(nil)

// NewDispatcher создаёт диспетчер. Без sink события просто вычитываются.
func NewDispatcher(sinks []Sink, options ...Option) *Dispatcher {
	opts := DispatcherOptions{
		BufferSize:     defaultBufferSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
		DrainTimeout:   defaultDrainTimeout,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "event-dispatcher")
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBaseDelay < 0 {
		opts.RetryBaseDelay = 0
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}

	return &Dispatcher{
		sinks:          append([]Sink(nil), sinks...),
		queue:          make(chan domain.Event, opts.BufferSize),
		logger:         logger,
		maxAttempts:    opts.MaxAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		drainTimeout:   opts.DrainTimeout,
	}
}

// Publish ставит событие в очередь. При переполнении событие отбрасывается.
func (d *Dispatcher) Publish(event domain.Event) {
	select {
	case d.queue <- event:
		eventsQueueDepth.Set(float64(len(d.queue)))
	default:
		d.dropped.Add(1)
		eventsDropped.Inc()
		d.logger.WithFields(log.Fields{
			"event_type": event.Type,
			"sale_id":    event.SaleID,
		}).Warn("event queue is full, event dropped")
	}
}

// Dropped возвращает число отброшенных событий.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Run доставляет события до отмены ctx, затем досылает остаток очереди.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case event := <-d.queue:
			eventsQueueDepth.Set(float64(len(d.queue)))
			d.deliver(ctx, event)
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()

	for {
		select {
		case event := <-d.queue:
			d.deliver(ctx, event)
		default:
			eventsQueueDepth.Set(0)
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event domain.Event) {
	for _, sink := range d.sinks {
		if err := d.sendWithRetry(ctx, sink, event); err != nil {
			eventsDispatched.WithLabelValues(sink.Name(), "failed").Inc()
			d.logger.WithError(err).WithFields(log.Fields{
				"sink":       sink.Name(),
				"event_type": event.Type,
				"sale_id":    event.SaleID,
			}).Error("event delivery failed after retries")
			continue
		}
		eventsDispatched.WithLabelValues(sink.Name(), "sent").Inc()
	}
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, sink Sink, event domain.Event) error {
	var lastErr error

	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		err := sink.Send(ctx, event)
		if err == nil {
			return nil
		}
		lastErr = err
		eventsDispatched.WithLabelValues(sink.Name(), "retry_error").Inc()

		if attempt >= d.maxAttempts {
			break
		}

		delay := d.retryBackoff(attempt)
		if delay <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("send to %s failed after %d attempts: %w", sink.Name(), d.maxAttempts, lastErr)
}

func (d *Dispatcher) retryBackoff(attempt int) time.Duration {
	if d.retryBaseDelay <= 0 {
		return 0
	}

	const maxDuration = time.Duration(1<<63 - 1)
	delay := d.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > maxDuration/2 {
			return maxDuration
		}
		delay *= 2
	}
	return delay
}
