package domain

import "github.com/shopspring/decimal"

// ExternalIdentity — денормализованная ссылка на сущность внешней системы
// (клиент, филиал, товар). Сравнивается по значению.
type ExternalIdentity struct {
	ExternalID  string
	Description string
}

// NewExternalIdentity создаёт ссылку на внешнюю сущность.
func NewExternalIdentity(externalID, description string) ExternalIdentity {
	return ExternalIdentity{ExternalID: externalID, Description: description}
}

// Money — денежная сумма в десятичной арифметике.
// Неотрицательность — соглашение, а не проверяемый инвариант.
type Money struct {
	amount decimal.Decimal
}

// Zero — нейтральный элемент сложения.
var Zero = Money{amount: decimal.Zero}

// NewMoney создаёт сумму из decimal.
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// MustMoney разбирает строку в сумму и паникует при ошибке (для констант и тестов).
func MustMoney(amount string) Money {
	return Money{amount: decimal.RequireFromString(amount)}
}

// Amount возвращает значение суммы.
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

func (m Money) Sub(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// Mul умножает сумму на скаляр.
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor)}
}

// Equal сравнивает суммы численно (10 == 10.00).
func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount)
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

func (m Money) String() string {
	return m.amount.StringFixed(2)
}

// Quantity — количество единиц товара, всегда > 0.
type Quantity struct {
	value int
}

// QuantityFrom проверяет и создаёт количество.
func QuantityFrom(value int) (Quantity, error) {
	if value <= 0 {
		return Quantity{}, NewValidationError(ErrQuantityNotPositive, "Quantity must be greater than zero.")
	}
	return Quantity{value: value}, nil
}

func (q Quantity) Value() int {
	return q.value
}

// Discount — ставка скидки в диапазоне [0, 1].
type Discount struct {
	rate decimal.Decimal
}

// NoDiscount — нулевая скидка.
var NoDiscount = Discount{rate: decimal.Zero}

// DiscountFromRate проверяет и создаёт ставку скидки.
func DiscountFromRate(rate decimal.Decimal) (Discount, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return Discount{}, NewValidationError(ErrDiscountRateOutOfRange, "Discount rate must be between 0 and 1.")
	}
	return Discount{rate: rate}, nil
}

func (d Discount) Rate() decimal.Decimal {
	return d.rate
}
