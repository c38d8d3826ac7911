package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/sales/internal/cache/rediscache"
	"github.com/vladislavdragonenkov/sales/internal/contracts"
	healthcheck "github.com/vladislavdragonenkov/sales/internal/health"
	"github.com/vladislavdragonenkov/sales/internal/service/events"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "memory-init"))
	require.NoError(t, err)
	defer deps.close(log.WithField("test", "memory-init"))

	assert.NotNil(t, deps.repo)
	assert.NotNil(t, deps.readModel)
	assert.NotNil(t, deps.dispatcher)
	assert.NotNil(t, deps.service)
	assert.NotNil(t, deps.projector)
	assert.Empty(t, deps.closers, "memory stores hold no external resources")

	report := deps.health.Run(context.Background())
	assert.Equal(t, healthcheck.StatusHealthy, report.Status)
}

func TestInitRuntimeDependencies_NilLogger(t *testing.T) {
	deps, err := initRuntimeDependencies(context.Background(), DefaultConfig(), nil)
	require.NoError(t, err)
	deps.close(log.WithField("test", "nil-logger"))
}

func TestInitRuntimeDependencies_PostgresRequiresDSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = ""

	_, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "postgres-dsn"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), envPostgresDSN)
}

func TestInitRuntimeDependencies_UnsupportedDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "unknown"

	_, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "unsupported"))
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestInitRuntimeDependencies_SQLiteReadModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReadDriver = ReadDriverSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "views.db")
	cfg.ReadSource = "read"
	logger := log.WithField("test", "sqlite-init")

	deps, err := initRuntimeDependencies(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer deps.close(logger)

	require.Len(t, deps.closers, 1)
	assert.Equal(t, "sqlite", deps.closers[0].name)

	report := deps.health.Run(context.Background())
	assert.Equal(t, healthcheck.StatusHealthy, report.Status)
	assert.Contains(t, report.Checks, "sqlite")

	ctx := context.Background()
	created, err := deps.service.Create(ctx, contracts.CreateSaleInput{
		SaleNumber: "S-APP-1",
		SaleDate:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Customer:   contracts.ExternalIdentityDTO{ExternalID: "c-1", Description: "Customer"},
		Branch:     contracts.ExternalIdentityDTO{ExternalID: "b-1", Description: "Branch"},
		Items: []contracts.SaleItemInput{{
			Product:   contracts.ExternalIdentityDTO{ExternalID: "p-1", Description: "Product"},
			Quantity:  4,
			UnitPrice: decimal.RequireFromString("10"),
		}},
	})
	require.NoError(t, err)

	// Чтение идёт из SQLite, куда сервис спроецировал продажу.
	got, err := deps.service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "S-APP-1", got.SaleNumber)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("36")))

	deps.close(logger)
	assert.Empty(t, deps.closers)
}

func TestInitRuntimeDependencies_RedisCacheIsOptional(t *testing.T) {
	cfg := DefaultConfig()
	// Порт 1 закрыт: кэш недоступен, но старт не ломается.
	cfg.RedisAddr = "127.0.0.1:1"
	logger := log.WithField("test", "redis-init")

	deps, err := initRuntimeDependencies(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer deps.close(logger)

	_, isCache := deps.readModel.(*rediscache.ReadModel)
	assert.True(t, isCache, "read model should be wrapped by the redis cache")

	report := deps.health.Run(context.Background())
	assert.Equal(t, healthcheck.StatusDegraded, report.Checks["redis"].Status)
	assert.Equal(t, healthcheck.StatusDegraded, report.Status)
}

func TestInitEventSinks_LogOnly(t *testing.T) {
	deps := &runtimeDependencies{}
	sinks := initEventSinks(DefaultConfig(), log.WithField("test", "sinks"), deps)

	require.Len(t, sinks, 1)
	_, isLog := sinks[0].(*events.LogSink)
	assert.True(t, isLog)
	assert.Empty(t, deps.closers)
}

func TestInitEventSinks_UnreachableNATS(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NATSURL = "nats://127.0.0.1:1"
	deps := &runtimeDependencies{}

	sinks := initEventSinks(cfg, log.WithField("test", "sinks-nats"), deps)

	assert.Len(t, sinks, 1, "unreachable nats must not block startup")
	assert.Empty(t, deps.closers)
}

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	producer, err := initKafkaProducer(nil, log.WithField("test", "kafka"))

	if err != nil {
		t.Errorf("expected no error for empty brokers, got %v", err)
	}
	if producer != nil {
		t.Error("expected nil producer for empty brokers")
	}
}

func TestInitKafkaProducer_InvalidBrokers(t *testing.T) {
	producer, err := initKafkaProducer([]string{"127.0.0.1:1"}, log.WithField("test", "kafka"))

	if err == nil {
		t.Error("expected error for invalid brokers")
	}
	if producer != nil {
		t.Error("expected nil producer on error")
	}
}

func TestCloseKafka_NilProducer(_ *testing.T) {
	// Не должно паниковать
	closeKafka(nil, log.WithField("test", "kafka"))
}

func TestRuntimeDependencies_CloseOrder(t *testing.T) {
	var order []string
	deps := &runtimeDependencies{}
	deps.addCloser("first", func() error { order = append(order, "first"); return nil })
	deps.addCloser("second", func() error { order = append(order, "second"); return assert.AnError })
	deps.addCloser("third", func() error { order = append(order, "third"); return nil })

	deps.close(log.WithField("test", "close"))

	assert.Equal(t, []string{"third", "second", "first"}, order)
	assert.Empty(t, deps.closers)

	var nilDeps *runtimeDependencies
	nilDeps.close(log.WithField("test", "close"))
}
