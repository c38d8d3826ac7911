package query

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Row — проекция продажи на поля, участвующие в фильтрах и сортировке.
type Row struct {
	ID          uuid.UUID
	SaleNumber  string
	Customer    string
	Branch      string
	SaleDate    time.Time
	TotalAmount decimal.Decimal
	Cancelled   bool
}

// Match проверяет строку по всем заданным фильтрам (логическое И).
func (c Criteria) Match(r Row) bool {
	if c.SaleNumber != nil && !c.SaleNumber.Matches(r.SaleNumber) {
		return false
	}
	if c.Customer != nil && !c.Customer.Matches(r.Customer) {
		return false
	}
	if c.Branch != nil && !c.Branch.Matches(r.Branch) {
		return false
	}
	if c.IsCancelled != nil && *c.IsCancelled != r.Cancelled {
		return false
	}
	if c.MinSaleDate != nil && r.SaleDate.Before(*c.MinSaleDate) {
		return false
	}
	if c.MaxSaleDate != nil && r.SaleDate.After(*c.MaxSaleDate) {
		return false
	}
	if c.MinTotalAmount != nil && r.TotalAmount.LessThan(*c.MinTotalAmount) {
		return false
	}
	if c.MaxTotalAmount != nil && r.TotalAmount.GreaterThan(*c.MaxTotalAmount) {
		return false
	}
	return true
}

// Compare сравнивает строки по ключам порядка; при полном равенстве — по ID,
// чтобы страницы были детерминированы. Строки сравниваются побайтово.
func (o Order) Compare(a, b Row) int {
	for _, key := range o {
		var c int
		switch key.Field {
		case FieldSaleNumber:
			c = strings.Compare(a.SaleNumber, b.SaleNumber)
		case FieldSaleDate:
			c = a.SaleDate.Compare(b.SaleDate)
		case FieldTotalAmount:
			c = a.TotalAmount.Cmp(b.TotalAmount)
		}
		if key.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return cmp.Compare(a.ID.String(), b.ID.String())
}

// Apply фильтрует, сортирует и нарезает срез в памяти. Возвращает страницу
// и общее число подходящих элементов.
func Apply[T any](items []T, row func(T) Row, spec Spec) ([]T, int) {
	type entry struct {
		item T
		row  Row
	}

	matched := make([]entry, 0, len(items))
	for _, item := range items {
		r := row(item)
		if spec.Criteria.Match(r) {
			matched = append(matched, entry{item: item, row: r})
		}
	}

	order := spec.SortOrder()
	slices.SortStableFunc(matched, func(a, b entry) int {
		return order.Compare(a.row, b.row)
	})

	total := len(matched)
	start := min(spec.Page.Offset(), total)
	end := total
	if spec.Page.Size > 0 {
		end = min(start+spec.Page.Size, total)
	}

	page := make([]T, 0, end-start)
	for _, e := range matched[start:end] {
		page = append(page, e.item)
	}
	return page, total
}
