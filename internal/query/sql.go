package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Dialect описывает, как фильтры и сортировка ложатся на конкретную схему SQL.
type Dialect struct {
	// Placeholder возвращает n-й (с 1) параметр запроса.
	Placeholder func(n int) string

	ID          string
	SaleNumber  string
	SaleDate    string
	TotalAmount string
	Cancelled   string

	// LowerSaleNumber, LowerCustomer, LowerBranch — выражения в нижнем регистре
	// для регистронезависимого сравнения.
	LowerSaleNumber string
	LowerCustomer   string
	LowerBranch     string

	// TextOrder оборачивает текстовый столбец для побайтовой сортировки.
	TextOrder func(column string) string

	DateArg   func(time.Time) any
	AmountArg func(decimal.Decimal) any
	BoolArg   func(bool) any
}

// Statement — части SELECT, собранные из Spec.
type Statement struct {
	// Where — условие без слова WHERE; пустая строка, если фильтров нет.
	Where     string
	WhereArgs []any
	OrderBy   string
	// Limit — "LIMIT x OFFSET y" с параметрами после WhereArgs.
	Limit     string
	LimitArgs []any
}

// WhereClause возвращает " WHERE ..." или пустую строку.
func (s Statement) WhereClause() string {
	if s.Where == "" {
		return ""
	}
	return " WHERE " + s.Where
}

// Args возвращает параметры для запроса страницы.
func (s Statement) Args() []any {
	args := make([]any, 0, len(s.WhereArgs)+len(s.LimitArgs))
	args = append(args, s.WhereArgs...)
	return append(args, s.LimitArgs...)
}

// Build переводит Spec в SQL для диалекта d.
func Build(d Dialect, spec Spec) Statement {
	b := &builder{dialect: d}
	c := spec.Criteria

	b.text(d.LowerSaleNumber, c.SaleNumber)
	b.text(d.LowerCustomer, c.Customer)
	b.text(d.LowerBranch, c.Branch)
	if c.IsCancelled != nil {
		b.cond(d.Cancelled+" = %s", d.BoolArg(*c.IsCancelled))
	}
	if c.MinSaleDate != nil {
		b.cond(d.SaleDate+" >= %s", d.DateArg(*c.MinSaleDate))
	}
	if c.MaxSaleDate != nil {
		b.cond(d.SaleDate+" <= %s", d.DateArg(*c.MaxSaleDate))
	}
	if c.MinTotalAmount != nil {
		b.cond(d.TotalAmount+" >= %s", d.AmountArg(*c.MinTotalAmount))
	}
	if c.MaxTotalAmount != nil {
		b.cond(d.TotalAmount+" <= %s", d.AmountArg(*c.MaxTotalAmount))
	}

	stmt := Statement{
		Where:     strings.Join(b.conds, " AND "),
		WhereArgs: b.args,
		OrderBy:   orderBy(d, spec.SortOrder()),
	}

	if spec.Page.Size > 0 {
		n := len(b.args)
		stmt.Limit = fmt.Sprintf("LIMIT %s OFFSET %s", d.Placeholder(n+1), d.Placeholder(n+2))
		stmt.LimitArgs = []any{spec.Page.Size, spec.Page.Offset()}
	}
	return stmt
}

type builder struct {
	dialect Dialect
	conds   []string
	args    []any
}

func (b *builder) cond(format string, arg any) {
	b.args = append(b.args, arg)
	b.conds = append(b.conds, fmt.Sprintf(format, b.dialect.Placeholder(len(b.args))))
}

func (b *builder) text(column string, m *TextMatch) {
	if m == nil {
		return
	}
	if m.Mode == MatchExact {
		b.cond(column+" = %s", m.Token)
		return
	}
	b.cond(column+` LIKE %s ESCAPE '\'`, m.LikePattern())
}

func orderBy(d Dialect, order Order) string {
	parts := make([]string, 0, len(order)+1)
	for _, key := range order {
		var column string
		switch key.Field {
		case FieldSaleNumber:
			column = d.TextOrder(d.SaleNumber)
		case FieldSaleDate:
			column = d.SaleDate
		case FieldTotalAmount:
			column = d.TotalAmount
		default:
			continue
		}
		dir := "ASC"
		if key.Desc {
			dir = "DESC"
		}
		parts = append(parts, column+" "+dir)
	}
	parts = append(parts, d.ID+" ASC")
	return strings.Join(parts, ", ")
}
