package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/sales/internal/contracts"
	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/query"
)

// saleRepositoryInMemory — in-memory реализация SaleRepository. Хранит снимки,
// поэтому агрегаты, отданные наружу, не разделяют состояние с хранилищем.
type saleRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[uuid.UUID]contracts.SaleDTO
}

// NewSaleRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewSaleRepository() domain.SaleRepository {
	return &saleRepositoryInMemory{
		items: make(map[uuid.UUID]contracts.SaleDTO),
	}
}

// GetByID возвращает продажу или nil, если её нет.
func (r *saleRepositoryInMemory) GetByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	snapshot, ok := r.items[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return snapshot.ToSale()
}

// GetPaged применяет фильтры, сортировку и пагинацию к снимкам.
func (r *saleRepositoryInMemory) GetPaged(ctx context.Context, spec query.Spec) ([]*domain.Sale, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	snapshots := make([]contracts.SaleDTO, 0, len(r.items))
	for _, s := range r.items {
		snapshots = append(snapshots, s)
	}
	r.mu.RUnlock()

	page, total := query.Apply(snapshots, contracts.SaleDTO.Row, spec)
	result := make([]*domain.Sale, 0, len(page))
	for _, snapshot := range page {
		sale, err := snapshot.ToSale()
		if err != nil {
			return nil, 0, err
		}
		result = append(result, sale)
	}
	return result, total, nil
}

// Add сохраняет новую продажу, если ID ещё не занят.
func (r *saleRepositoryInMemory) Add(ctx context.Context, sale *domain.Sale) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[sale.ID()]; exists {
		return fmt.Errorf("%w: %s", domain.ErrSaleAlreadyExists, sale.ID())
	}
	r.items[sale.ID()] = contracts.FromSale(sale)
	return nil
}

// Update перезаписывает продажу целиком.
func (r *saleRepositoryInMemory) Update(ctx context.Context, sale *domain.Sale) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[sale.ID()]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrSaleNotFound, sale.ID())
	}
	r.items[sale.ID()] = contracts.FromSale(sale)
	return nil
}

// Delete удаляет продажу; false, если её не было.
func (r *saleRepositoryInMemory) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return false, nil
	}
	delete(r.items, id)
	return true, nil
}

var _ domain.SaleRepository = (*saleRepositoryInMemory)(nil)
