package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты команд для метки result.
const (
	ResultOK         = "ok"
	ResultValidation = "validation_error"
	ResultNotFound   = "not_found"
	ResultError      = "error"
)

// SalesMetrics содержит метрики сервиса продаж.
type SalesMetrics struct {
	commands        *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	projectionFails prometheus.Counter
	inFlight        prometheus.Gauge
}

// NewSalesMetrics создаёт метрики в стандартном registry.
func NewSalesMetrics() *SalesMetrics {
	return NewSalesMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewSalesMetricsWithRegisterer создаёт метрики в заданном registry.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewSalesMetricsWithRegisterer(registerer prometheus.Registerer) *SalesMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SalesMetrics{
		commands: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "sales_commands_total",
			Help: "Total number of sale commands grouped by command and result",
		}, []string{"command", "result"}),
		queryDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "sales_query_duration_seconds",
			Help:    "Duration of sale queries in seconds grouped by read source",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"source"}),
		projectionFails: registerCounter(registerer, prometheus.CounterOpts{
			Name: "sales_projection_failures_total",
			Help: "Total number of failed read model projections",
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "sales_commands_in_flight",
			Help: "Number of sale commands currently being executed",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCommand увеличивает счётчик команды с заданным результатом.
func (m *SalesMetrics) RecordCommand(command, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, result).Inc()
}

// RecordQueryDuration записывает время выполнения запроса к источнику чтения.
func (m *SalesMetrics) RecordQueryDuration(source string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordProjectionFailure увеличивает счётчик неудачных проекций.
func (m *SalesMetrics) RecordProjectionFailure() {
	if m == nil {
		return
	}
	m.projectionFails.Inc()
}

// CommandStarted увеличивает число выполняющихся команд.
func (m *SalesMetrics) CommandStarted() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// CommandFinished уменьшает число выполняющихся команд.
func (m *SalesMetrics) CommandFinished() {
	if m == nil {
		return
	}
	m.inFlight.Dec()
}
