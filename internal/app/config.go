package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/vladislavdragonenkov/sales/internal/service/sales"
	"github.com/vladislavdragonenkov/sales/internal/storage/postgres"
)

// Драйверы хранилища записи.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Драйверы read-модели.
const (
	ReadDriverMemory = "memory"
	ReadDriverSQLite = "sqlite"
)

// Переменные окружения сервиса.
const (
	envHTTPAddr            = "SALES_HTTP_ADDR"
	envGRPCAddr            = "SALES_GRPC_ADDR"
	envMetricsAddr         = "SALES_METRICS_ADDR"
	envStorageDriver       = "SALES_STORAGE_DRIVER"
	envPostgresDSN         = "SALES_POSTGRES_DSN"
	envPostgresAutoMigrate = "SALES_POSTGRES_AUTO_MIGRATE"
	envPostgresMaxOpen     = "SALES_POSTGRES_MAX_OPEN_CONNS"
	envPostgresMaxIdle     = "SALES_POSTGRES_MAX_IDLE_CONNS"
	envPostgresMaxLifetime = "SALES_POSTGRES_CONN_MAX_LIFETIME"
	envPostgresMaxIdleTime = "SALES_POSTGRES_CONN_MAX_IDLE_TIME"
	envReadDriver          = "SALES_READ_DRIVER"
	envSQLitePath          = "SALES_SQLITE_PATH"
	envReadSource          = "SALES_READ_SOURCE"
	envRedisAddr           = "SALES_REDIS_ADDR"
	envRedisTTL            = "SALES_REDIS_TTL"
	envKafkaBrokers        = "SALES_KAFKA_BROKERS"
	envKafkaTopic          = "SALES_KAFKA_TOPIC"
	envKafkaProjection     = "SALES_KAFKA_PROJECTION"
	envKafkaGroup          = "SALES_KAFKA_GROUP"
	envNATSURL             = "SALES_NATS_URL"
	envNATSStream          = "SALES_NATS_STREAM"
	envNATSSubjectPrefix   = "SALES_NATS_SUBJECT_PREFIX"
	envEventBufferSize     = "SALES_EVENT_BUFFER_SIZE"
	envEventMaxAttempts    = "SALES_EVENT_MAX_ATTEMPTS"
	envEventRetryDelay     = "SALES_EVENT_RETRY_DELAY"
	envLogLevel            = "SALES_LOG_LEVEL"
	envLogFormat           = "SALES_LOG_FORMAT"
)

// Config описывает настройки запуска сервиса продаж.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	// Параметры пула соединений PostgreSQL.
	PostgresMaxOpenConns    int
	PostgresMaxIdleConns    int
	PostgresConnMaxLifetime time.Duration
	PostgresConnMaxIdleTime time.Duration

	ReadDriver string
	SQLitePath string
	// ReadSource: "write" или "read", откуда сервис читает запросы.
	ReadSource string

	RedisAddr string
	RedisTTL  time.Duration

	// KafkaBrokers — список брокеров через запятую.
	KafkaBrokers    string
	KafkaTopic      string
	KafkaProjection bool
	KafkaGroup      string

	NATSURL           string
	NATSStream        string
	NATSSubjectPrefix string

	EventBufferSize  int
	EventMaxAttempts int
	EventRetryDelay  time.Duration

	LogLevel  string
	LogFormat string
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних сервисов.
func DefaultConfig() Config {
	pool := postgres.DefaultPoolConfig()
	return Config{
		HTTPAddr:                ":8080",
		GRPCAddr:                ":50051",
		MetricsAddr:             ":9090",
		StorageDriver:           StorageDriverMemory,
		PostgresAutoMigrate:     true,
		PostgresMaxOpenConns:    pool.MaxOpenConns,
		PostgresMaxIdleConns:    pool.MaxIdleConns,
		PostgresConnMaxLifetime: pool.ConnMaxLifetime,
		PostgresConnMaxIdleTime: pool.ConnMaxIdleTime,
		ReadDriver:              ReadDriverMemory,
		SQLitePath:              "sales_views.db",
		ReadSource:              string(sales.ReadFromWrite),
		RedisTTL:                5 * time.Minute,
		KafkaTopic:              "sales.events",
		KafkaGroup:              "sales-projector",
		NATSStream:              "SALES",
		NATSSubjectPrefix:       "sales.",
		EventBufferSize:         256,
		EventMaxAttempts:        3,
		EventRetryDelay:         50 * time.Millisecond,
		LogLevel:                "info",
		LogFormat:               "text",
	}
}

// Brokers разбирает KafkaBrokers в список, отбрасывая пустые элементы.
func (c Config) Brokers() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// PostgresPool собирает параметры пула для postgres.OpenWithPool.
func (c Config) PostgresPool() postgres.PoolConfig {
	return postgres.PoolConfig{
		MaxOpenConns:    c.PostgresMaxOpenConns,
		MaxIdleConns:    c.PostgresMaxIdleConns,
		ConnMaxLifetime: c.PostgresConnMaxLifetime,
		ConnMaxIdleTime: c.PostgresConnMaxIdleTime,
	}
}

// EnvLookup совместим с os.LookupEnv.
type EnvLookup func(key string) (string, bool)

// LoadConfig подгружает .env (если есть) и читает конфигурацию из окружения.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return ConfigFromEnv(os.LookupEnv)
}

// ConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Все некорректные значения собираются в одну ошибку.
func ConfigFromEnv(lookup EnvLookup) (Config, error) {
	cfg := DefaultConfig()
	var errs []error

	str := func(key string, dest *string) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*dest = strings.TrimSpace(value)
		}
	}
	boolean := func(key string, dest *bool) {
		value, ok := lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			return
		}
		parsed, err := parseBool(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dest = parsed
	}
	positive := func(key string, dest *int) {
		value, ok := lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			return
		}
		parsed, err := parseInt(value, func(v int) bool { return v > 0 }, "must be positive")
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dest = parsed
	}
	duration := func(key string, dest *time.Duration) {
		value, ok := lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			return
		}
		parsed, err := parseDuration(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dest = parsed
	}

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envStorageDriver, &cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	positive(envPostgresMaxOpen, &cfg.PostgresMaxOpenConns)
	positive(envPostgresMaxIdle, &cfg.PostgresMaxIdleConns)
	duration(envPostgresMaxLifetime, &cfg.PostgresConnMaxLifetime)
	duration(envPostgresMaxIdleTime, &cfg.PostgresConnMaxIdleTime)
	str(envReadDriver, &cfg.ReadDriver)
	str(envSQLitePath, &cfg.SQLitePath)
	str(envReadSource, &cfg.ReadSource)
	str(envRedisAddr, &cfg.RedisAddr)
	duration(envRedisTTL, &cfg.RedisTTL)
	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envKafkaTopic, &cfg.KafkaTopic)
	boolean(envKafkaProjection, &cfg.KafkaProjection)
	str(envKafkaGroup, &cfg.KafkaGroup)
	str(envNATSURL, &cfg.NATSURL)
	str(envNATSStream, &cfg.NATSStream)
	str(envNATSSubjectPrefix, &cfg.NATSSubjectPrefix)
	positive(envEventBufferSize, &cfg.EventBufferSize)
	positive(envEventMaxAttempts, &cfg.EventMaxAttempts)
	duration(envEventRetryDelay, &cfg.EventRetryDelay)
	str(envLogLevel, &cfg.LogLevel)
	str(envLogFormat, &cfg.LogFormat)

	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	cfg.ReadDriver = strings.ToLower(cfg.ReadDriver)
	cfg.ReadSource = strings.ToLower(cfg.ReadSource)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate проверяет допустимые значения перечислимых полей.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("%s is required for postgres storage", envPostgresDSN))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	switch c.ReadDriver {
	case ReadDriverMemory, ReadDriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported read driver %q", c.ReadDriver))
	}
	switch c.ReadSource {
	case string(sales.ReadFromWrite), string(sales.ReadFromRead):
	default:
		errs = append(errs, fmt.Errorf("unsupported read source %q", c.ReadSource))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.LogFormat))
	}
	if c.PostgresMaxIdleConns > c.PostgresMaxOpenConns {
		errs = append(errs, fmt.Errorf("%s must not exceed %s", envPostgresMaxIdle, envPostgresMaxOpen))
	}
	if c.KafkaProjection && len(c.Brokers()) == 0 {
		errs = append(errs, fmt.Errorf("%s requires %s", envKafkaProjection, envKafkaBrokers))
	}
	return errors.Join(errs...)
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, msg string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("%d %s", value, msg)
	}
	return value, nil
}

func parseDuration(raw string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if value <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", raw)
	}
	return value, nil
}
