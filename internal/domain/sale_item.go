package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// MaxIdenticalItems — предельное количество одинаковых товаров в одной позиции.
	MaxIdenticalItems = 20

	tierMidMinQty  = 4
	tierHighMinQty = 10
)

var (
	tierMidRate  = decimal.RequireFromString("0.10")
	tierHighRate = decimal.RequireFromString("0.20")
)

// SaleItem — позиция продажи. Скидка и суммы всегда согласованы с количеством
// и ценой; позиция принадлежит только своей продаже.
type SaleItem struct {
	id             uuid.UUID
	product        ExternalIdentity
	quantity       Quantity
	unitPrice      Money
	discount       Discount
	discountAmount Money
	totalAmount    Money
	cancelled      bool
}

// NewSaleItem создаёт позицию и рассчитывает скидку.
func NewSaleItem(product ExternalIdentity, quantity Quantity, unitPrice Money) (*SaleItem, error) {
	item := &SaleItem{
		id:        uuid.New(),
		product:   product,
		unitPrice: unitPrice,
	}
	if err := item.SetQuantity(quantity); err != nil {
		return nil, err
	}
	return item, nil
}

// RestoreSaleItem восстанавливает позицию из хранилища. Производные поля
// пересчитываются заново, отменённая позиция остаётся обнулённой.
func RestoreSaleItem(id uuid.UUID, product ExternalIdentity, quantity Quantity, unitPrice Money, cancelled bool) (*SaleItem, error) {
	item := &SaleItem{
		id:        id,
		product:   product,
		unitPrice: unitPrice,
	}
	if err := item.SetQuantity(quantity); err != nil {
		return nil, err
	}
	if cancelled {
		item.Cancel()
	}
	return item, nil
}

func (i *SaleItem) ID() uuid.UUID             { return i.id }
func (i *SaleItem) Product() ExternalIdentity { return i.product }
func (i *SaleItem) Quantity() Quantity        { return i.quantity }
func (i *SaleItem) UnitPrice() Money          { return i.unitPrice }
func (i *SaleItem) Discount() Discount        { return i.discount }
func (i *SaleItem) DiscountAmount() Money     { return i.discountAmount }
func (i *SaleItem) TotalAmount() Money        { return i.totalAmount }
func (i *SaleItem) IsCancelled() bool         { return i.cancelled }

// SetQuantity меняет количество и пересчитывает скидку.
func (i *SaleItem) SetQuantity(quantity Quantity) error {
	if i.cancelled {
		return NewValidationError(ErrSaleItemCancelled, "Cannot change a cancelled sale item.")
	}
	if quantity.Value() > MaxIdenticalItems {
		return NewValidationError(ErrTooManyIdenticalItems, "Cannot sell more than 20 identical items.")
	}
	if quantity.Value() <= 0 {
		return NewValidationError(ErrQuantityNotPositive, "Quantity must be greater than zero.")
	}

	i.quantity = quantity
	i.applyDiscountRules()
	return nil
}

// SetUnitPrice меняет цену за единицу и пересчитывает суммы.
func (i *SaleItem) SetUnitPrice(unitPrice Money) error {
	if i.cancelled {
		return NewValidationError(ErrSaleItemCancelled, "Cannot change a cancelled sale item.")
	}

	i.unitPrice = unitPrice
	i.applyDiscountRules()
	return nil
}

// Cancel необратимо отменяет позицию и обнуляет скидку и сумму.
func (i *SaleItem) Cancel() {
	i.cancelled = true
	i.discount = NoDiscount
	i.discountAmount = Zero
	i.totalAmount = Zero
}

func (i *SaleItem) applyDiscountRules() {
	i.discount = discountFor(i.quantity)

	gross := i.unitPrice.Mul(decimal.NewFromInt(int64(i.quantity.Value())))
	i.discountAmount = gross.Mul(i.discount.Rate())
	i.totalAmount = gross.Sub(i.discountAmount)
}

// discountFor возвращает ставку по ступеням количества; границы 4 и 10 включаются в верхнюю ступень.
func discountFor(quantity Quantity) Discount {
	switch q := quantity.Value(); {
	case q >= tierHighMinQty:
		return Discount{rate: tierHighRate}
	case q >= tierMidMinQty:
		return Discount{rate: tierMidRate}
	default:
		return NoDiscount
	}
}

func (i *SaleItem) clone() *SaleItem {
	c := *i
	return &c
}
