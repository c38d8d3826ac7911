package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOrder возвращается при неизвестном поле или направлении сортировки.
var ErrInvalidOrder = errors.New("invalid order expression")

// Field — поле, по которому разрешена сортировка.
type Field string

const (
	FieldSaleNumber  Field = "saleNumber"
	FieldSaleDate    Field = "saleDate"
	FieldTotalAmount Field = "totalAmount"
)

var sortableFields = map[string]Field{
	"salenumber":  FieldSaleNumber,
	"saledate":    FieldSaleDate,
	"totalamount": FieldTotalAmount,
}

// SortKey — один сегмент сортировки.
type SortKey struct {
	Field Field
	Desc  bool
}

// Order — упорядоченный список ключей: первый основной, остальные разрешают ничьи.
type Order []SortKey

// DefaultOrder — по номеру продажи по возрастанию.
func DefaultOrder() Order {
	return Order{{Field: FieldSaleNumber}}
}

// ParseOrder разбирает строку вида "totalAmount desc,saleNumber asc".
// Пустая строка даёт порядок по умолчанию. Имена полей и направления
// регистронезависимы.
func ParseOrder(raw string) (Order, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultOrder(), nil
	}

	segments := strings.Split(raw, ",")
	order := make(Order, 0, len(segments))
	for _, segment := range segments {
		parts := strings.Fields(segment)
		if len(parts) == 0 || len(parts) > 2 {
			return nil, fmt.Errorf("%w: segment %q", ErrInvalidOrder, strings.TrimSpace(segment))
		}

		field, ok := sortableFields[strings.ToLower(parts[0])]
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidOrder, parts[0])
		}

		key := SortKey{Field: field}
		if len(parts) == 2 {
			switch strings.ToLower(parts[1]) {
			case "asc":
			case "desc":
				key.Desc = true
			default:
				return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidOrder, parts[1])
			}
		}
		order = append(order, key)
	}
	return order, nil
}

// String возвращает каноническую запись порядка.
func (o Order) String() string {
	parts := make([]string, 0, len(o))
	for _, key := range o {
		dir := "asc"
		if key.Desc {
			dir = "desc"
		}
		parts = append(parts, string(key.Field)+" "+dir)
	}
	return strings.Join(parts, ",")
}
