package domain

import (
	"errors"
	"fmt"
)

// ErrorKind — закрытое перечисление классов ошибок, которые видит граница API.
type ErrorKind int

const (
	// KindInternal — любая непредвиденная ошибка (сбой хранилища, баг).
	KindInternal ErrorKind = iota
	// KindValidation — некорректные входные данные.
	KindValidation
	// KindNotFound — продажа или позиция не найдены.
	KindNotFound
)

// String возвращает имя класса ошибки в том виде, в котором оно уходит клиенту.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "ResourceNotFound"
	default:
		return "InternalError"
	}
}

var (
	// Ошибка при количестве товара <= 0.
	ErrQuantityNotPositive = errors.New("quantity must be greater than zero")
	// Ошибка превышения лимита одинаковых товаров в одной позиции.
	ErrTooManyIdenticalItems = errors.New("cannot sell more than 20 identical items")
	// Ошибка отрицательной цены за единицу.
	ErrUnitPriceNegative = errors.New("unit price must not be negative")
	// Ошибка ставки скидки вне диапазона [0, 1].
	ErrDiscountRateOutOfRange = errors.New("discount rate must be between 0 and 1")
	// Ошибка изменения уже отменённой позиции.
	ErrSaleItemCancelled = errors.New("sale item is cancelled")
	// Ошибка добавления позиций в отменённую продажу.
	ErrSaleCancelled = errors.New("sale is cancelled")
	// ErrSaleNotFound возвращается, если продажа не найдена.
	ErrSaleNotFound = errors.New("sale not found")
	// ErrSaleAlreadyExists возвращается при повторном добавлении продажи с тем же ID.
	ErrSaleAlreadyExists = errors.New("sale already exists")
	// ErrSaleItemNotFound возвращается, если в продаже нет позиции с таким ID.
	ErrSaleItemNotFound = errors.New("sale item not found")
	// Ошибка несовпадения ID в маршруте и теле запроса.
	ErrIDMismatch = errors.New("route id does not match body id")
)

// Error — типизированная доменная ошибка с понятным клиенту описанием.
type Error struct {
	Kind   ErrorKind
	Title  string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError оборачивает причину в ошибку класса ValidationError.
func NewValidationError(cause error, detail string) *Error {
	return &Error{Kind: KindValidation, Title: "Invalid input data", Detail: detail, Err: cause}
}

// NewNotFoundError оборачивает причину в ошибку класса ResourceNotFound.
func NewNotFoundError(cause error, title, detail string) *Error {
	return &Error{Kind: KindNotFound, Title: title, Detail: detail, Err: cause}
}

// NewInternalError скрывает детали сбоя за ошибкой класса InternalError.
func NewInternalError(cause error) *Error {
	return &Error{Kind: KindInternal, Title: "Unexpected error", Detail: "An unexpected error occurred.", Err: cause}
}

// KindOf определяет класс ошибки; всё, что не является *Error, считается внутренней ошибкой.
func KindOf(err error) ErrorKind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return KindInternal
}

// AsError приводит произвольную ошибку к *Error.
func AsError(err error) *Error {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return NewInternalError(err)
}

// IsNotFound проверяет, относится ли ошибка к классу ResourceNotFound.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
