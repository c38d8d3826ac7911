// Package rediscache кэширует представления продаж в Redis поверх read-модели.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/contracts"
	"github.com/vladislavdragonenkov/sales/internal/query"
)

const (
	defaultTTL       = 5 * time.Minute
	defaultKeyPrefix = "sales:view:"
	opTimeout        = 500 * time.Millisecond
)

// client — подмножество команд go-redis, которое нужно кэшу (подменяется в тестах).
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Config задаёт подключение и поведение кэша.
type Config struct {
	Client    redis.UniversalClient
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
	Logger    *log.Entry
}

// ReadModel — read-through кэш карточек продаж. Списки не кэшируются:
// их ключи зависят от фильтров и устаревают при любой записи.
// Ошибки Redis не прерывают запрос, а только логируются.
type ReadModel struct {
	next      contracts.SaleReadModel
	client    client
	ownClient bool
	ttl       time.Duration
	prefix    string
	logger    *log.Entry
}

// New оборачивает read-модель кэшем.
func New(next contracts.SaleReadModel, cfg Config) (*ReadModel, error) {
	if next == nil {
		return nil, errors.New("rediscache: read model is required")
	}

	var (
		cl  client
		own bool
	)
	if cfg.Client != nil {
		cl = cfg.Client
	} else {
		if cfg.Addr == "" {
			return nil, errors.New("rediscache: redis address is required")
		}
		cl = redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
		own = true
	}
	return newReadModel(next, cl, own, cfg), nil
}

func newReadModel(next contracts.SaleReadModel, cl client, own bool, cfg Config) *ReadModel {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = log.WithField("component", "cache.redis")
	}
	return &ReadModel{
		next:      next,
		client:    cl,
		ownClient: own,
		ttl:       cfg.TTL,
		prefix:    cfg.KeyPrefix,
		logger:    cfg.Logger,
	}
}

// GetByID отдаёт представление из кэша или из read-модели с последующим заполнением кэша.
func (c *ReadModel) GetByID(ctx context.Context, id uuid.UUID) (*contracts.SaleDTO, error) {
	key := c.key(id)

	if view, ok := c.lookup(ctx, key); ok {
		return view, nil
	}

	view, err := c.next.GetByID(ctx, id)
	if err != nil || view == nil {
		return view, err
	}
	c.store(ctx, key, *view)
	return view, nil
}

// GetPaged всегда читает read-модель.
func (c *ReadModel) GetPaged(ctx context.Context, spec query.Spec) ([]contracts.SaleDTO, int, error) {
	return c.next.GetPaged(ctx, spec)
}

// Project обновляет read-модель и сбрасывает закэшированную карточку.
func (c *ReadModel) Project(ctx context.Context, sale contracts.SaleDTO) error {
	if err := c.next.Project(ctx, sale); err != nil {
		return err
	}
	c.invalidate(ctx, c.key(sale.ID))
	return nil
}

// Remove удаляет запись из read-модели и кэша.
func (c *ReadModel) Remove(ctx context.Context, id uuid.UUID) error {
	if err := c.next.Remove(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, c.key(id))
	return nil
}

// Ping проверяет доступность Redis.
func (c *ReadModel) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close закрывает клиента, если кэш создал его сам.
func (c *ReadModel) Close() error {
	if !c.ownClient {
		return nil
	}
	return c.client.Close()
}

func (c *ReadModel) key(id uuid.UUID) string {
	return c.prefix + id.String()
}

func (c *ReadModel) lookup(ctx context.Context, key string) (*contracts.SaleDTO, bool) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).WithField("key", key).Warn("redis get failed, falling back to read model")
		}
		return nil, false
	}

	var view contracts.SaleDTO
	if err := json.Unmarshal(raw, &view); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("drop undecodable cache entry")
		c.invalidate(ctx, key)
		return nil, false
	}
	return &view, true
}

func (c *ReadModel) store(ctx context.Context, key string, view contracts.SaleDTO) {
	payload, err := json.Marshal(view)
	if err != nil {
		c.logger.WithError(err).Warn("encode cache entry")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("redis set failed")
	}
}

func (c *ReadModel) invalidate(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warnf("redis del failed, entry expires in %s", c.ttl)
	}
}

var _ contracts.SaleReadModel = (*ReadModel)(nil)
