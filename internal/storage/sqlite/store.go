// Package sqlite хранит денормализованную read-модель продаж в SQLite.
package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	driverName     = "sqlite"
	defaultTimeout = 5 * time.Second
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS sale_views (
    id TEXT PRIMARY KEY,
    sale_number TEXT NOT NULL,
    sale_number_lc TEXT NOT NULL,
    sale_date_us INTEGER NOT NULL,
    customer_lc TEXT NOT NULL,
    branch_lc TEXT NOT NULL,
    total_amount TEXT NOT NULL,
    total_amount_num REAL NOT NULL,
    is_cancelled INTEGER NOT NULL,
    payload TEXT NOT NULL,
    projected_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sale_views_number ON sale_views (sale_number, id);
CREATE INDEX IF NOT EXISTS idx_sale_views_date ON sale_views (sale_date_us, id);
CREATE INDEX IF NOT EXISTS idx_sale_views_total ON sale_views (total_amount_num, id);
`

// Store оборачивает подключение к файлу SQLite.
type Store struct {
	db *sqlx.DB
}

// Open открывает (или создаёт) базу по пути path и создаёт схему.
// ":memory:" подходит для тестов.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open(driverName, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Один писатель: SQLite сериализует запись, а :memory: живёт в одном соединении.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func dsn(path string) string {
	if path == ":memory:" {
		return path
	}
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// EnsureSchema создаёт таблицу read-модели, если её нет.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure sqlite schema: %w", err)
	}
	return nil
}

// Ping проверяет доступность базы.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlite store is not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// DB возвращает подключение sqlx.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close закрывает подключение.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
