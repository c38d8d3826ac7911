package contracts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// SaleItemInput — позиция в запросе на создание или обновление.
type SaleItemInput struct {
	Product   ExternalIdentityDTO `json:"product"`
	Quantity  int                 `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal     `json:"unitPrice"`
}

// CreateSaleInput — запрос на создание продажи.
type CreateSaleInput struct {
	SaleNumber string              `json:"saleNumber" validate:"required,max=50"`
	SaleDate   time.Time           `json:"saleDate" validate:"required"`
	Customer   ExternalIdentityDTO `json:"customer"`
	Branch     ExternalIdentityDTO `json:"branch"`
	Items      []SaleItemInput     `json:"items" validate:"dive"`
}

// UpdateSaleInput — запрос на обновление: реквизиты и полный набор позиций.
type UpdateSaleInput struct {
	ID uuid.UUID `json:"id"`
	CreateSaleInput
}

// NewSale строит агрегат из запроса на создание.
func (in CreateSaleInput) NewSale() (*domain.Sale, error) {
	items, err := buildItems(in.Items)
	if err != nil {
		return nil, err
	}

	sale := domain.NewSale(in.SaleNumber, in.SaleDate, in.Customer.toDomain(), in.Branch.toDomain())
	if err := sale.ReplaceItems(items); err != nil {
		return nil, err
	}
	return sale, nil
}

// ApplyTo переносит запрос на обновление в существующий агрегат.
func (in UpdateSaleInput) ApplyTo(sale *domain.Sale) error {
	items, err := buildItems(in.Items)
	if err != nil {
		return err
	}

	sale.UpdateDetails(in.SaleNumber, in.SaleDate, in.Customer.toDomain(), in.Branch.toDomain())
	return sale.ReplaceItems(items)
}

func buildItems(inputs []SaleItemInput) ([]*domain.SaleItem, error) {
	items := make([]*domain.SaleItem, 0, len(inputs))
	for _, in := range inputs {
		qty, err := domain.QuantityFrom(in.Quantity)
		if err != nil {
			return nil, err
		}
		if in.UnitPrice.IsNegative() {
			return nil, domain.NewValidationError(domain.ErrUnitPriceNegative, "Unit price must not be negative.")
		}
		item, err := domain.NewSaleItem(in.Product.toDomain(), qty, domain.NewMoney(in.UnitPrice))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
