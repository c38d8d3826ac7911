// Package contracts содержит представления продажи, которые пересекают
// границу сервиса, и их преобразование из доменной модели.
package contracts

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/query"
)

// ExternalIdentityDTO — ссылка на сущность внешней системы.
type ExternalIdentityDTO struct {
	ExternalID  string `json:"externalId" validate:"required,max=100"`
	Description string `json:"description" validate:"max=200"`
}

// SaleItemDTO — позиция продажи во внешнем представлении.
type SaleItemDTO struct {
	ID             uuid.UUID           `json:"id"`
	Product        ExternalIdentityDTO `json:"product"`
	Quantity       int                 `json:"quantity"`
	UnitPrice      decimal.Decimal     `json:"unitPrice"`
	DiscountRate   decimal.Decimal     `json:"discountRate"`
	DiscountAmount decimal.Decimal     `json:"discountAmount"`
	TotalAmount    decimal.Decimal     `json:"totalAmount"`
	IsCancelled    bool                `json:"isCancelled"`
}

// SaleDTO — продажа во внешнем представлении; она же запись read-модели.
type SaleDTO struct {
	ID          uuid.UUID           `json:"id"`
	SaleNumber  string              `json:"saleNumber"`
	SaleDate    time.Time           `json:"saleDate"`
	Customer    ExternalIdentityDTO `json:"customer"`
	Branch      ExternalIdentityDTO `json:"branch"`
	TotalAmount decimal.Decimal     `json:"totalAmount"`
	Items       []SaleItemDTO       `json:"items"`
	IsCancelled bool                `json:"isCancelled"`
}

// FromSale строит внешнее представление агрегата.
func FromSale(sale *domain.Sale) SaleDTO {
	items := sale.Items()
	dto := SaleDTO{
		ID:          sale.ID(),
		SaleNumber:  sale.SaleNumber(),
		SaleDate:    sale.SaleDate(),
		Customer:    fromIdentity(sale.Customer()),
		Branch:      fromIdentity(sale.Branch()),
		TotalAmount: sale.TotalAmount().Amount(),
		Items:       make([]SaleItemDTO, 0, len(items)),
		IsCancelled: sale.IsCancelled(),
	}
	for i := range items {
		dto.Items = append(dto.Items, fromItem(&items[i]))
	}
	return dto
}

// FromSales отображает срез агрегатов.
func FromSales(sales []*domain.Sale) []SaleDTO {
	result := make([]SaleDTO, 0, len(sales))
	for _, sale := range sales {
		result = append(result, FromSale(sale))
	}
	return result
}

func fromItem(item *domain.SaleItem) SaleItemDTO {
	return SaleItemDTO{
		ID:             item.ID(),
		Product:        fromIdentity(item.Product()),
		Quantity:       item.Quantity().Value(),
		UnitPrice:      item.UnitPrice().Amount(),
		DiscountRate:   item.Discount().Rate(),
		DiscountAmount: item.DiscountAmount().Amount(),
		TotalAmount:    item.TotalAmount().Amount(),
		IsCancelled:    item.IsCancelled(),
	}
}

func fromIdentity(id domain.ExternalIdentity) ExternalIdentityDTO {
	return ExternalIdentityDTO{ExternalID: id.ExternalID, Description: id.Description}
}

func (d ExternalIdentityDTO) toDomain() domain.ExternalIdentity {
	return domain.NewExternalIdentity(d.ExternalID, d.Description)
}

// Row возвращает поля записи, по которым работают фильтры и сортировка.
func (s SaleDTO) Row() query.Row {
	return query.Row{
		ID:          s.ID,
		SaleNumber:  s.SaleNumber,
		Customer:    s.Customer.Description,
		Branch:      s.Branch.Description,
		SaleDate:    s.SaleDate,
		TotalAmount: s.TotalAmount,
		Cancelled:   s.IsCancelled,
	}
}

// SaleRow — то же для агрегата.
func SaleRow(sale *domain.Sale) query.Row {
	return query.Row{
		ID:          sale.ID(),
		SaleNumber:  sale.SaleNumber(),
		Customer:    sale.Customer().Description,
		Branch:      sale.Branch().Description,
		SaleDate:    sale.SaleDate(),
		TotalAmount: sale.TotalAmount().Amount(),
		Cancelled:   sale.IsCancelled(),
	}
}

// PagedResult — страница результатов списка.
type PagedResult[T any] struct {
	Data        []T `json:"data"`
	TotalItems  int `json:"totalItems"`
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
}

// NewPagedResult собирает страницу и считает число страниц.
func NewPagedResult[T any](data []T, total int, page query.Page) PagedResult[T] {
	if data == nil {
		data = []T{}
	}
	return PagedResult[T]{
		Data:        data,
		TotalItems:  total,
		CurrentPage: page.Number,
		TotalPages:  query.TotalPages(total, page.Size),
	}
}

// ToSale восстанавливает агрегат из представления. Производные суммы
// пересчитываются доменом, а не берутся из представления.
func (s SaleDTO) ToSale() (*domain.Sale, error) {
	items := make([]*domain.SaleItem, 0, len(s.Items))
	for _, in := range s.Items {
		qty, err := domain.QuantityFrom(in.Quantity)
		if err != nil {
			return nil, fmt.Errorf("restore item %s: %w", in.ID, err)
		}
		item, err := domain.RestoreSaleItem(in.ID, in.Product.toDomain(), qty, domain.NewMoney(in.UnitPrice), in.IsCancelled)
		if err != nil {
			return nil, fmt.Errorf("restore item %s: %w", in.ID, err)
		}
		items = append(items, item)
	}
	return domain.RestoreSale(s.ID, s.SaleNumber, s.SaleDate, s.Customer.toDomain(), s.Branch.toDomain(), items, s.IsCancelled), nil
}
