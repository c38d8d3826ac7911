package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/sales/internal/contracts"
	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/query"
)

const (
	opTimeout = 5 * time.Second

	saleColumns = `s.id, s.sale_number, s.sale_date, s.customer_id, s.customer_description,
		s.branch_id, s.branch_description, s.total_amount, s.is_cancelled`
)

// salesDialect описывает схему таблицы sales для построителя запросов.
var salesDialect = query.Dialect{
	Placeholder:     func(n int) string { return "$" + strconv.Itoa(n) },
	ID:              "s.id",
	SaleNumber:      "s.sale_number",
	SaleDate:        "s.sale_date",
	TotalAmount:     "s.total_amount",
	Cancelled:       "s.is_cancelled",
	LowerSaleNumber: "s.sale_number_lc",
	LowerCustomer:   "s.customer_lc",
	LowerBranch:     "s.branch_lc",
	TextOrder:       func(column string) string { return column + ` COLLATE "C"` },
	DateArg:         func(t time.Time) any { return t.UTC() },
	AmountArg:       func(d decimal.Decimal) any { return d.String() },
	BoolArg:         func(b bool) any { return b },
}

type saleRepository struct {
	db *sql.DB
}

// NewSaleRepository создаёт PostgreSQL-реализацию SaleRepository.
func NewSaleRepository(store *Store) domain.SaleRepository {
	return &saleRepository{db: store.DB()}
}

func (r *saleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales s WHERE s.id = $1`, id)
	header, err := scanSaleHeader(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select sale: %w", err)
	}

	items, err := r.loadItems(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	header.Items = items[id]

	return header.ToSale()
}

func (r *saleRepository) GetPaged(ctx context.Context, spec query.Spec) ([]*domain.Sale, int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	stmt := query.Build(salesDialect, spec)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales s`+stmt.WhereClause(), stmt.WhereArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sales: %w", err)
	}
	if total == 0 {
		return []*domain.Sale{}, 0, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+saleColumns+` FROM sales s`+stmt.WhereClause()+` ORDER BY `+stmt.OrderBy+` `+stmt.Limit,
		stmt.Args()...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	headers := make([]contracts.SaleDTO, 0, spec.Page.Size)
	ids := make([]uuid.UUID, 0, spec.Page.Size)
	for rows.Next() {
		header, err := scanSaleHeader(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan sale row: %w", err)
		}
		headers = append(headers, header)
		ids = append(ids, header.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate sale rows: %w", err)
	}

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	sales := make([]*domain.Sale, 0, len(headers))
	for _, header := range headers {
		header.Items = items[header.ID]
		sale, err := header.ToSale()
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, sale)
	}
	return sales, total, nil
}

func (r *saleRepository) Add(ctx context.Context, sale *domain.Sale) (err error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	view := contracts.FromSale(sale)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, sale_number, sale_date, customer_id, customer_description,
			branch_id, branch_description, total_amount, is_cancelled,
			sale_number_lc, customer_lc, branch_lc
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		view.ID, view.SaleNumber, view.SaleDate,
		view.Customer.ExternalID, view.Customer.Description,
		view.Branch.ExternalID, view.Branch.Description,
		view.TotalAmount.String(), view.IsCancelled,
		strings.ToLower(view.SaleNumber),
		strings.ToLower(view.Customer.Description),
		strings.ToLower(view.Branch.Description),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrSaleAlreadyExists, view.ID)
		}
		return fmt.Errorf("insert sale: %w", err)
	}

	if err = insertItems(ctx, tx, view); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit add sale: %w", err)
	}
	return nil
}

// Update перезаписывает реквизиты и заменяет позиции целиком.
func (r *saleRepository) Update(ctx context.Context, sale *domain.Sale) (err error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	view := contracts.FromSale(sale)
	res, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET sale_number = $1,
		    sale_date = $2,
		    customer_id = $3,
		    customer_description = $4,
		    branch_id = $5,
		    branch_description = $6,
		    total_amount = $7,
		    is_cancelled = $8,
		    sale_number_lc = $9,
		    customer_lc = $10,
		    branch_lc = $11,
		    updated_at = NOW()
		WHERE id = $12
	`,
		view.SaleNumber, view.SaleDate,
		view.Customer.ExternalID, view.Customer.Description,
		view.Branch.ExternalID, view.Branch.Description,
		view.TotalAmount.String(), view.IsCancelled,
		strings.ToLower(view.SaleNumber),
		strings.ToLower(view.Customer.Description),
		strings.ToLower(view.Branch.Description),
		view.ID,
	)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		err = fmt.Errorf("%w: %s", domain.ErrSaleNotFound, view.ID)
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id = $1`, view.ID); err != nil {
		return fmt.Errorf("delete sale items: %w", err)
	}
	if err = insertItems(ctx, tx, view); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit update sale: %w", err)
	}
	return nil
}

func (r *saleRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete sale: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, view contracts.SaleDTO) error {
	for position, item := range view.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sale_items (
				id, sale_id, position, product_id, product_description, quantity,
				unit_price, discount_rate, discount_amount, total_amount, is_cancelled
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`,
			item.ID, view.ID, position,
			item.Product.ExternalID, item.Product.Description, item.Quantity,
			item.UnitPrice.String(), item.DiscountRate.String(),
			item.DiscountAmount.String(), item.TotalAmount.String(),
			item.IsCancelled,
		); err != nil {
			return fmt.Errorf("insert sale item: %w", err)
		}
	}
	return nil
}

func (r *saleRepository) loadItems(ctx context.Context, saleIDs []uuid.UUID) (map[uuid.UUID][]contracts.SaleItemDTO, error) {
	result := make(map[uuid.UUID][]contracts.SaleItemDTO, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(saleIDs))
	for _, id := range saleIDs {
		ids = append(ids, id.String())
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT sale_id, id, product_id, product_description, quantity,
		       unit_price, discount_rate, discount_amount, total_amount, is_cancelled
		FROM sale_items
		WHERE sale_id = ANY($1::uuid[])
		ORDER BY sale_id, position
	`, "{"+strings.Join(ids, ",")+"}")
	if err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			saleID uuid.UUID
			item   contracts.SaleItemDTO
		)
		if err := rows.Scan(
			&saleID, &item.ID, &item.Product.ExternalID, &item.Product.Description, &item.Quantity,
			&item.UnitPrice, &item.DiscountRate, &item.DiscountAmount, &item.TotalAmount, &item.IsCancelled,
		); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		result[saleID] = append(result[saleID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale items: %w", err)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSaleHeader(row rowScanner) (contracts.SaleDTO, error) {
	var view contracts.SaleDTO
	err := row.Scan(
		&view.ID, &view.SaleNumber, &view.SaleDate,
		&view.Customer.ExternalID, &view.Customer.Description,
		&view.Branch.ExternalID, &view.Branch.Description,
		&view.TotalAmount, &view.IsCancelled,
	)
	return view, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.SaleRepository = (*saleRepository)(nil)
