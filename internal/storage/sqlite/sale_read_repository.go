package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/sales/internal/contracts"
	"github.com/vladislavdragonenkov/sales/internal/query"
)

// viewsDialect раскладывает фильтры на предвычисленные столбцы sale_views:
// строки хранятся в нижнем регистре, даты — в микросекундах Unix.
var viewsDialect = query.Dialect{
	Placeholder:     func(int) string { return "?" },
	ID:              "id",
	SaleNumber:      "sale_number",
	SaleDate:        "sale_date_us",
	TotalAmount:     "total_amount_num",
	Cancelled:       "is_cancelled",
	LowerSaleNumber: "sale_number_lc",
	LowerCustomer:   "customer_lc",
	LowerBranch:     "branch_lc",
	TextOrder:       func(column string) string { return column },
	DateArg:         func(t time.Time) any { return t.UTC().UnixMicro() },
	AmountArg:       func(d decimal.Decimal) any { return d.InexactFloat64() },
	BoolArg:         boolToInt,
}

type viewRow struct {
	ID             string  `db:"id"`
	SaleNumber     string  `db:"sale_number"`
	SaleNumberLC   string  `db:"sale_number_lc"`
	SaleDateUS     int64   `db:"sale_date_us"`
	CustomerLC     string  `db:"customer_lc"`
	BranchLC       string  `db:"branch_lc"`
	TotalAmount    string  `db:"total_amount"`
	TotalAmountNum float64 `db:"total_amount_num"`
	IsCancelled    int     `db:"is_cancelled"`
	Payload        string  `db:"payload"`
	ProjectedAt    int64   `db:"projected_at"`
}

type saleReadModel struct {
	store *Store
}

// NewSaleReadModel создаёт read-модель поверх SQLite.
func NewSaleReadModel(store *Store) contracts.SaleReadModel {
	return &saleReadModel{store: store}
}

func (r *saleReadModel) GetByID(ctx context.Context, id uuid.UUID) (*contracts.SaleDTO, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var payload string
	err := r.store.db.GetContext(ctx, &payload, `SELECT payload FROM sale_views WHERE id = ?`, id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select sale view: %w", err)
	}

	view, err := decodeView(payload)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (r *saleReadModel) GetPaged(ctx context.Context, spec query.Spec) ([]contracts.SaleDTO, int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stmt := query.Build(viewsDialect, spec)

	var total int
	if err := r.store.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM sale_views`+stmt.WhereClause(), stmt.WhereArgs...); err != nil {
		return nil, 0, fmt.Errorf("count sale views: %w", err)
	}
	if total == 0 {
		return []contracts.SaleDTO{}, 0, nil
	}

	var payloads []string
	err := r.store.db.SelectContext(ctx, &payloads,
		`SELECT payload FROM sale_views`+stmt.WhereClause()+` ORDER BY `+stmt.OrderBy+` `+stmt.Limit,
		stmt.Args()...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list sale views: %w", err)
	}

	views := make([]contracts.SaleDTO, 0, len(payloads))
	for _, payload := range payloads {
		view, err := decodeView(payload)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, view)
	}
	return views, total, nil
}

// Project вставляет или заменяет представление продажи.
func (r *saleReadModel) Project(ctx context.Context, sale contracts.SaleDTO) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row, err := toViewRow(sale)
	if err != nil {
		return err
	}

	_, err = r.store.db.NamedExecContext(ctx, `
		INSERT INTO sale_views (
			id, sale_number, sale_number_lc, sale_date_us, customer_lc, branch_lc,
			total_amount, total_amount_num, is_cancelled, payload, projected_at
		) VALUES (
			:id, :sale_number, :sale_number_lc, :sale_date_us, :customer_lc, :branch_lc,
			:total_amount, :total_amount_num, :is_cancelled, :payload, :projected_at
		)
		ON CONFLICT (id) DO UPDATE SET
			sale_number = excluded.sale_number,
			sale_number_lc = excluded.sale_number_lc,
			sale_date_us = excluded.sale_date_us,
			customer_lc = excluded.customer_lc,
			branch_lc = excluded.branch_lc,
			total_amount = excluded.total_amount,
			total_amount_num = excluded.total_amount_num,
			is_cancelled = excluded.is_cancelled,
			payload = excluded.payload,
			projected_at = excluded.projected_at
	`, row)
	if err != nil {
		return fmt.Errorf("upsert sale view: %w", err)
	}
	return nil
}

func (r *saleReadModel) Remove(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.store.db.ExecContext(ctx, `DELETE FROM sale_views WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete sale view: %w", err)
	}
	return nil
}

func toViewRow(sale contracts.SaleDTO) (viewRow, error) {
	payload, err := json.Marshal(sale)
	if err != nil {
		return viewRow{}, fmt.Errorf("encode sale view: %w", err)
	}
	return viewRow{
		ID:             sale.ID.String(),
		SaleNumber:     sale.SaleNumber,
		SaleNumberLC:   strings.ToLower(sale.SaleNumber),
		SaleDateUS:     sale.SaleDate.UTC().UnixMicro(),
		CustomerLC:     strings.ToLower(sale.Customer.Description),
		BranchLC:       strings.ToLower(sale.Branch.Description),
		TotalAmount:    sale.TotalAmount.String(),
		TotalAmountNum: sale.TotalAmount.InexactFloat64(),
		IsCancelled:    boolToInt(sale.IsCancelled).(int),
		Payload:        string(payload),
		ProjectedAt:    time.Now().UTC().UnixMicro(),
	}, nil
}

func decodeView(payload string) (contracts.SaleDTO, error) {
	var view contracts.SaleDTO
	if err := json.Unmarshal([]byte(payload), &view); err != nil {
		return contracts.SaleDTO{}, fmt.Errorf("decode sale view: %w", err)
	}
	view.SaleDate = view.SaleDate.UTC()
	return view, nil
}

func boolToInt(b bool) any {
	if b {
		return 1
	}
	return 0
}

var _ contracts.SaleReadModel = (*saleReadModel)(nil)
