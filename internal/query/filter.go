package query

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Ключи фильтров в запросе.
const (
	KeySaleNumber     = "saleNumber"
	KeyCustomer       = "customer"
	KeyBranch         = "branch"
	KeyIsCancelled    = "isCancelled"
	KeyMinSaleDate    = "_minSaleDate"
	KeyMaxSaleDate    = "_maxSaleDate"
	KeyMinTotalAmount = "_minTotalAmount"
	KeyMaxTotalAmount = "_maxTotalAmount"
)

const wildcard = "*"

// MatchMode — способ сравнения строкового фильтра.
type MatchMode int

const (
	MatchExact MatchMode = iota
	MatchPrefix
	MatchSuffix
	MatchContains
)

// TextMatch — регистронезависимый строковый фильтр. Token хранится в нижнем регистре.
type TextMatch struct {
	Mode  MatchMode
	Token string
}

// ParseTextMatch разбирает значение с '*' в начале и/или конце.
// Звёздочки внутри значения считаются обычными символами.
// Пустой токен означает отсутствие фильтра.
func ParseTextMatch(raw string) (TextMatch, bool) {
	value := strings.TrimSpace(raw)
	leading := strings.HasPrefix(value, wildcard)
	value = strings.TrimPrefix(value, wildcard)
	trailing := strings.HasSuffix(value, wildcard)
	value = strings.TrimSuffix(value, wildcard)
	if value == "" {
		return TextMatch{}, false
	}

	mode := MatchExact
	switch {
	case leading && trailing:
		mode = MatchContains
	case leading:
		mode = MatchSuffix
	case trailing:
		mode = MatchPrefix
	}
	return TextMatch{Mode: mode, Token: strings.ToLower(value)}, true
}

// Matches проверяет значение без учёта регистра.
func (m TextMatch) Matches(value string) bool {
	v := strings.ToLower(value)
	switch m.Mode {
	case MatchPrefix:
		return strings.HasPrefix(v, m.Token)
	case MatchSuffix:
		return strings.HasSuffix(v, m.Token)
	case MatchContains:
		return strings.Contains(v, m.Token)
	default:
		return v == m.Token
	}
}

// LikePattern возвращает шаблон LIKE с экранированием '\', '%' и '_'.
// Для MatchExact возвращается сам токен: сравнивать его нужно через '='.
func (m TextMatch) LikePattern() string {
	if m.Mode == MatchExact {
		return m.Token
	}
	escaped := likeEscaper.Replace(m.Token)
	switch m.Mode {
	case MatchPrefix:
		return escaped + "%"
	case MatchSuffix:
		return "%" + escaped
	default:
		return "%" + escaped + "%"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Criteria — разобранные фильтры. nil означает, что фильтр не задан.
type Criteria struct {
	SaleNumber     *TextMatch
	Customer       *TextMatch
	Branch         *TextMatch
	IsCancelled    *bool
	MinSaleDate    *time.Time
	MaxSaleDate    *time.Time
	MinTotalAmount *decimal.Decimal
	MaxTotalAmount *decimal.Decimal
}

// ParseFilters разбирает сырые фильтры. Неизвестные ключи, пустые и
// нераспознанные значения пропускаются: фильтр просто не применяется.
func ParseFilters(raw map[string]string) Criteria {
	var c Criteria
	for key, value := range raw {
		if strings.TrimSpace(value) == "" {
			continue
		}
		switch key {
		case KeySaleNumber:
			c.SaleNumber = textFilter(value)
		case KeyCustomer:
			c.Customer = textFilter(value)
		case KeyBranch:
			c.Branch = textFilter(value)
		case KeyIsCancelled:
			c.IsCancelled = boolFilter(value)
		case KeyMinSaleDate:
			c.MinSaleDate = dateFilter(value)
		case KeyMaxSaleDate:
			c.MaxSaleDate = dateFilter(value)
		case KeyMinTotalAmount:
			c.MinTotalAmount = amountFilter(value)
		case KeyMaxTotalAmount:
			c.MaxTotalAmount = amountFilter(value)
		}
	}
	return c
}

// IsEmpty сообщает, что ни один фильтр не задан.
func (c Criteria) IsEmpty() bool {
	return c == Criteria{}
}

func textFilter(value string) *TextMatch {
	m, ok := ParseTextMatch(value)
	if !ok {
		return nil
	}
	return &m
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// dateFilter понимает RFC3339, RFC3339 без зоны и YYYY-MM-DD; без зоны — UTC.
// Граница усекается до микросекунд, как и дата продажи.
func dateFilter(value string) *time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			t = t.UTC().Truncate(time.Microsecond)
			return &t
		}
	}
	return nil
}

// boolFilter принимает только "true" и "false" в любом регистре.
func boolFilter(value string) *bool {
	var b bool
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true":
		b = true
	case "false":
	default:
		return nil
	}
	return &b
}

func amountFilter(value string) *decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return nil
	}
	return &d
}
