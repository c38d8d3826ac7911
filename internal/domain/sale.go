package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sale — корень агрегата продажи. Итоговая сумма всегда равна сумме
// неотменённых позиций; отмена продажи каскадно отменяет все позиции.
type Sale struct {
	id          uuid.UUID
	saleNumber  string
	saleDate    time.Time
	customer    ExternalIdentity
	branch      ExternalIdentity
	items       []*SaleItem
	totalAmount Money
	cancelled   bool
}

// NewSale создаёт продажу без позиций.
func NewSale(saleNumber string, saleDate time.Time, customer, branch ExternalIdentity) *Sale {
	sale := &Sale{
		id:         uuid.New(),
		saleNumber: saleNumber,
		saleDate:   normalizeSaleDate(saleDate),
		customer:   customer,
		branch:     branch,
	}
	sale.recalculateTotal()
	return sale
}

// RestoreSale восстанавливает продажу из хранилища. Для отменённой продажи
// отмена повторно применяется ко всем позициям, итог пересчитывается.
func RestoreSale(
	id uuid.UUID,
	saleNumber string,
	saleDate time.Time,
	customer, branch ExternalIdentity,
	items []*SaleItem,
	cancelled bool,
) *Sale {
	sale := &Sale{
		id:         id,
		saleNumber: saleNumber,
		saleDate:   normalizeSaleDate(saleDate),
		customer:   customer,
		branch:     branch,
		items:      append([]*SaleItem(nil), items...),
	}
	if cancelled {
		sale.Cancel()
		return sale
	}
	sale.recalculateTotal()
	return sale
}

func (s *Sale) ID() uuid.UUID              { return s.id }
func (s *Sale) SaleNumber() string         { return s.saleNumber }
func (s *Sale) SaleDate() time.Time        { return s.saleDate }
func (s *Sale) Customer() ExternalIdentity { return s.customer }
func (s *Sale) Branch() ExternalIdentity   { return s.branch }
func (s *Sale) TotalAmount() Money         { return s.totalAmount }
func (s *Sale) IsCancelled() bool          { return s.cancelled }

// Items возвращает копии позиций: изменить позицию можно только через методы Sale.
func (s *Sale) Items() []SaleItem {
	result := make([]SaleItem, 0, len(s.items))
	for _, item := range s.items {
		result = append(result, *item)
	}
	return result
}

// AddItem добавляет позицию. Дубли по товару допустимы как отдельные строки.
func (s *Sale) AddItem(item *SaleItem) error {
	if s.cancelled {
		return NewValidationError(ErrSaleCancelled, "Cannot add items to a cancelled sale.")
	}
	s.items = append(s.items, item.clone())
	s.recalculateTotal()
	return nil
}

// UpdateDetails заменяет реквизиты продажи, не трогая позиции и итог.
func (s *Sale) UpdateDetails(saleNumber string, saleDate time.Time, customer, branch ExternalIdentity) {
	s.saleNumber = saleNumber
	s.saleDate = normalizeSaleDate(saleDate)
	s.customer = customer
	s.branch = branch
}

// ReplaceItems целиком заменяет набор позиций.
func (s *Sale) ReplaceItems(items []*SaleItem) error {
	if s.cancelled {
		return NewValidationError(ErrSaleCancelled, "Cannot replace items of a cancelled sale.")
	}
	replaced := make([]*SaleItem, 0, len(items))
	for _, item := range items {
		replaced = append(replaced, item.clone())
	}
	s.items = replaced
	s.recalculateTotal()
	return nil
}

// Cancel отменяет продажу вместе со всеми позициями.
func (s *Sale) Cancel() {
	s.cancelled = true
	for _, item := range s.items {
		item.Cancel()
	}
	s.recalculateTotal()
}

// CancelItem отменяет одну позицию; ResourceNotFound, если позиции нет.
func (s *Sale) CancelItem(itemID uuid.UUID) error {
	for _, item := range s.items {
		if item.id != itemID {
			continue
		}
		item.Cancel()
		s.recalculateTotal()
		return nil
	}
	return NewNotFoundError(
		ErrSaleItemNotFound,
		"Sale item not found",
		fmt.Sprintf("Item with ID %s was not found in sale %s.", itemID, s.id),
	)
}

func (s *Sale) recalculateTotal() {
	total := Zero
	for _, item := range s.items {
		if item.cancelled {
			continue
		}
		total = total.Add(item.totalAmount)
	}
	s.totalAmount = total
}

// normalizeSaleDate приводит дату к UTC с точностью до микросекунд — столько хранит PostgreSQL.
func normalizeSaleDate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
