package domain

import (
	"context"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/sales/internal/query"
)

// SaleRepository описывает требования к основному (пишущему) хранилищу продаж.
// Отсутствие записи не является ошибкой: GetByID возвращает nil, Delete — false.
type SaleRepository interface {
	// GetByID возвращает продажу или nil, если её нет.
	GetByID(ctx context.Context, id uuid.UUID) (*Sale, error)
	// GetPaged возвращает страницу продаж и общее число записей, подходящих под фильтр.
	GetPaged(ctx context.Context, spec query.Spec) ([]*Sale, int, error)
	// Add сохраняет новую продажу вместе с позициями.
	Add(ctx context.Context, sale *Sale) error
	// Update перезаписывает продажу целиком (last-writer-wins).
	Update(ctx context.Context, sale *Sale) error
	// Delete удаляет продажу; false, если удалять было нечего.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}
