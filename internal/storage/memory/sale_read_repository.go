package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/sales/internal/contracts"
	"github.com/vladislavdragonenkov/sales/internal/query"
)

// saleReadModelInMemory — read-модель в памяти.
type saleReadModelInMemory struct {
	mu    sync.RWMutex
	views map[uuid.UUID]contracts.SaleDTO
}

// NewSaleReadModel возвращает in-memory read-модель.
func NewSaleReadModel() contracts.SaleReadModel {
	return &saleReadModelInMemory{
		views: make(map[uuid.UUID]contracts.SaleDTO),
	}
}

func (r *saleReadModelInMemory) GetByID(ctx context.Context, id uuid.UUID) (*contracts.SaleDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	view, ok := r.views[id]
	if !ok {
		return nil, nil
	}
	view.Items = append([]contracts.SaleItemDTO(nil), view.Items...)
	return &view, nil
}

func (r *saleReadModelInMemory) GetPaged(ctx context.Context, spec query.Spec) ([]contracts.SaleDTO, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	views := make([]contracts.SaleDTO, 0, len(r.views))
	for _, v := range r.views {
		v.Items = append([]contracts.SaleItemDTO(nil), v.Items...)
		views = append(views, v)
	}
	r.mu.RUnlock()

	page, total := query.Apply(views, contracts.SaleDTO.Row, spec)
	return page, total, nil
}

// Project вставляет или заменяет представление.
func (r *saleReadModelInMemory) Project(ctx context.Context, sale contracts.SaleDTO) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sale.Items = append([]contracts.SaleItemDTO(nil), sale.Items...)

	r.mu.Lock()
	r.views[sale.ID] = sale
	r.mu.Unlock()
	return nil
}

func (r *saleReadModelInMemory) Remove(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.views, id)
	r.mu.Unlock()
	return nil
}

var _ contracts.SaleReadModel = (*saleReadModelInMemory)(nil)
