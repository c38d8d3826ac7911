package contracts

import (
	"context"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/sales/internal/query"
)

// SaleReadRepository — денормализованная read-модель с тем же контрактом
// фильтрации, сортировки и пагинации, что и у основного хранилища.
type SaleReadRepository interface {
	// GetByID возвращает представление или nil, если записи нет.
	GetByID(ctx context.Context, id uuid.UUID) (*SaleDTO, error)
	GetPaged(ctx context.Context, spec query.Spec) ([]SaleDTO, int, error)
}

// SaleProjection поддерживает read-модель в актуальном состоянии.
type SaleProjection interface {
	// Project вставляет или заменяет представление продажи.
	Project(ctx context.Context, sale SaleDTO) error
	// Remove удаляет представление; отсутствие записи не ошибка.
	Remove(ctx context.Context, id uuid.UUID) error
}

// SaleReadModel объединяет чтение и проекцию.
type SaleReadModel interface {
	SaleReadRepository
	SaleProjection
}
