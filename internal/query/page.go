// Package query описывает фильтрацию, сортировку и пагинацию продаж так,
// чтобы каждое хранилище давало одинаковый результат на одинаковом входе.
package query

import (
	"errors"
	"math"
)

// ErrInvalidPage возвращается при номере страницы < 1 или размере вне [1, MaxPageSize].
var ErrInvalidPage = errors.New("invalid page")

const (
	// DefaultPageSize — размер страницы, если клиент его не указал.
	DefaultPageSize = 10
	// MaxPageSize — верхняя граница размера страницы.
	MaxPageSize = 100
)

// Page — номер страницы (с 1) и её размер.
type Page struct {
	Number int
	Size   int
}

// DefaultPage возвращает первую страницу размера по умолчанию.
func DefaultPage() Page {
	return Page{Number: 1, Size: DefaultPageSize}
}

// MaxPageNumber — наибольший номер страницы, смещение которой помещается в int.
func MaxPageNumber(size int) int {
	if size < 1 {
		return math.MaxInt
	}
	return math.MaxInt/size + 1
}

// Valid проверяет границы, которые должна соблюсти граница API.
func (p Page) Valid() bool {
	return p.Number >= 1 && p.Size >= 1 && p.Size <= MaxPageSize && p.Number <= MaxPageNumber(p.Size)
}

// Offset возвращает число пропускаемых записей. При переполнении
// смещение упирается в math.MaxInt, то есть страница заведомо пуста.
func (p Page) Offset() int {
	if p.Number < 1 || p.Size < 1 {
		return 0
	}
	if p.Number > MaxPageNumber(p.Size) {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// TotalPages = ceil(total/size); 0 при пустом результате.
func TotalPages(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

// Spec — полный запрос к списку продаж.
type Spec struct {
	Page     Page
	Order    Order
	Criteria Criteria
}

// SortOrder возвращает порядок запроса или порядок по умолчанию.
func (s Spec) SortOrder() Order {
	if len(s.Order) == 0 {
		return DefaultOrder()
	}
	return s.Order
}
