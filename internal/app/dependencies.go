package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/cache/rediscache"
	"github.com/vladislavdragonenkov/sales/internal/contracts"
	"github.com/vladislavdragonenkov/sales/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/sales/internal/health"
	"github.com/vladislavdragonenkov/sales/internal/metrics"
	"github.com/vladislavdragonenkov/sales/internal/service/events"
	"github.com/vladislavdragonenkov/sales/internal/service/sales"
	"github.com/vladislavdragonenkov/sales/internal/storage/memory"
	"github.com/vladislavdragonenkov/sales/internal/storage/postgres"
	"github.com/vladislavdragonenkov/sales/internal/storage/sqlite"
	"github.com/vladislavdragonenkov/sales/internal/version"
)

type closer struct {
	name  string
	close func() error
}

// runtimeDependencies — всё, что собирается из Config перед запуском серверов.
type runtimeDependencies struct {
	repo       domain.SaleRepository
	readModel  contracts.SaleReadModel
	dispatcher *events.Dispatcher
	service    *sales.Service
	projector  *sales.Projector
	health     *healthcheck.Handler
	closers    []closer
}

// initRuntimeDependencies открывает хранилища, подключает приёмники событий
// и собирает сервис. При ошибке уже открытые ресурсы закрываются.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (deps *runtimeDependencies, err error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	deps = &runtimeDependencies{health: healthcheck.NewHandler(version.GetVersion())}
	defer func() {
		if err != nil {
			deps.close(logger)
			deps = nil
		}
	}()

	if err = deps.initWriteStore(ctx, cfg, logger); err != nil {
		return deps, err
	}
	if err = deps.initReadModel(ctx, cfg, logger); err != nil {
		return deps, err
	}

	sinks := initEventSinks(cfg, logger, deps)
	deps.dispatcher = events.NewDispatcher(
		sinks,
		events.WithLogger(logger.WithField("layer", "events")),
		events.WithBufferSize(cfg.EventBufferSize),
		events.WithMaxAttempts(cfg.EventMaxAttempts),
		events.WithRetryBaseDelay(cfg.EventRetryDelay),
	)

	deps.service = sales.NewService(
		deps.repo,
		sales.WithReadModel(deps.readModel, sales.ReadSource(cfg.ReadSource)),
		sales.WithPublisher(deps.dispatcher),
		sales.WithLogger(logger.WithField("layer", "service")),
		sales.WithMetrics(metrics.NewSalesMetrics()),
	)
	deps.projector = sales.NewProjector(deps.repo, deps.readModel, logger.WithField("layer", "projector"))
	return deps, nil
}

func (d *runtimeDependencies) initWriteStore(ctx context.Context, cfg Config, logger *log.Entry) error {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		d.repo = memory.NewSaleRepository()
		logger.Info("write store: memory")
		return nil
	case StorageDriverPostgres:
		store, err := postgres.OpenWithPool(ctx, cfg.PostgresDSN, cfg.PostgresPool())
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		d.addCloser("postgres", store.Close)
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("migrate postgres: %w", err)
			}
		}
		d.repo = postgres.NewSaleRepository(store)
		d.health.RegisterChecker("postgres", healthcheck.NewPingChecker("postgres", store.Ping))
		logger.WithFields(log.Fields{
			"auto_migrate":   cfg.PostgresAutoMigrate,
			"max_open_conns": cfg.PostgresMaxOpenConns,
		}).Info("write store: postgres")
		return nil
	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func (d *runtimeDependencies) initReadModel(ctx context.Context, cfg Config, logger *log.Entry) error {
	switch cfg.ReadDriver {
	case ReadDriverMemory:
		d.readModel = memory.NewSaleReadModel()
	case ReadDriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		d.addCloser("sqlite", store.Close)
		d.readModel = sqlite.NewSaleReadModel(store)
		d.health.RegisterChecker("sqlite", healthcheck.NewPingChecker("sqlite", store.Ping))
	default:
		return fmt.Errorf("unsupported read driver %q", cfg.ReadDriver)
	}
	logger.WithFields(log.Fields{"driver": cfg.ReadDriver, "source": cfg.ReadSource}).Info("read model initialized")

	if cfg.RedisAddr == "" {
		return nil
	}
	cached, err := rediscache.New(d.readModel, rediscache.Config{
		Addr:   cfg.RedisAddr,
		TTL:    cfg.RedisTTL,
		Logger: logger.WithField("layer", "cache"),
	})
	if err != nil {
		return fmt.Errorf("init redis cache: %w", err)
	}
	d.addCloser("redis", cached.Close)
	d.readModel = cached
	// Кэш не обязателен: при недоступном Redis запросы идут мимо него.
	d.health.RegisterChecker("redis", healthcheck.NewPingChecker("redis", cached.Ping, healthcheck.Optional()))
	logger.WithField("addr", cfg.RedisAddr).Info("read model cache: redis")
	return nil
}

func (d *runtimeDependencies) addCloser(name string, fn func() error) {
	d.closers = append(d.closers, closer{name: name, close: fn})
}

// close освобождает ресурсы в обратном порядке открытия.
func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil {
		return
	}
	for i := len(d.closers) - 1; i >= 0; i-- {
		c := d.closers[i]
		if err := c.close(); err != nil {
			logger.WithError(err).WithField("resource", c.name).Warn("failed to close resource")
			continue
		}
		logger.WithField("resource", c.name).Debug("resource closed")
	}
	d.closers = nil
}
