package sales

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/contracts"
	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// Projector восстанавливает read-модель по событиям из брокера: перечитывает
// продажу из основного хранилища и заменяет представление целиком. Повторная
// доставка события безопасна.
type Projector struct {
	repo       domain.SaleRepository
	projection contracts.SaleProjection
	logger     *log.Entry
}

// NewProjector создаёт проектор.
func NewProjector(repo domain.SaleRepository, projection contracts.SaleProjection, logger *log.Entry) *Projector {
	if logger == nil {
		logger = log.WithField("component", "sales-projector")
	}
	return &Projector{repo: repo, projection: projection, logger: logger}
}

// HandleEvent синхронизирует представление продажи из события.
func (p *Projector) HandleEvent(ctx context.Context, event domain.Event) error {
	if err := p.Sync(ctx, event.SaleID); err != nil {
		return fmt.Errorf("project %s for sale %s: %w", event.Type, event.SaleID, err)
	}
	return nil
}

// Sync приводит представление к текущему состоянию основного хранилища.
// Удалённая продажа удаляется и из read-модели.
func (p *Projector) Sync(ctx context.Context, saleID uuid.UUID) error {
	sale, err := p.repo.GetByID(ctx, saleID)
	if err != nil {
		return fmt.Errorf("load sale: %w", err)
	}
	if sale == nil {
		if err := p.projection.Remove(ctx, saleID); err != nil {
			return fmt.Errorf("remove sale view: %w", err)
		}
		p.logger.WithField("sale_id", saleID).Debug("sale view removed")
		return nil
	}

	if err := p.projection.Project(ctx, contracts.FromSale(sale)); err != nil {
		return fmt.Errorf("project sale view: %w", err)
	}
	p.logger.WithField("sale_id", saleID).Debug("sale view projected")
	return nil
}
