// Package sales реализует команды и запросы над продажами: сохраняет агрегат
// в основное хранилище, обновляет read-модель и публикует события.
package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/contracts"
	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/metrics"
	"github.com/vladislavdragonenkov/sales/internal/query"
)

// ReadSource определяет, откуда отвечают запросы чтения.
type ReadSource string

const (
	// ReadFromWrite — запросы идут в основное хранилище.
	ReadFromWrite ReadSource = "write"
	// ReadFromRead — запросы идут в денормализованную read-модель.
	ReadFromRead ReadSource = "read"
)

const (
	commandCreate     = "create"
	commandUpdate     = "update"
	commandDelete     = "delete"
	commandCancel     = "cancel"
	commandCancelItem = "cancel_item"
)

// Option настраивает Service.
type Option func(*Service)

// WithReadModel подключает read-модель: она обновляется после каждой записи
// и, при ReadFromRead, обслуживает запросы.
func WithReadModel(readModel contracts.SaleReadModel, source ReadSource) Option {
	return func(s *Service) {
		s.reader = readModel
		s.projection = readModel
		s.readSource = source
	}
}

// WithPublisher задаёт получателя событий.
func WithPublisher(publisher domain.EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics подключает метрики команд и запросов.
func WithMetrics(m *metrics.SalesMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Service — прикладной слой продаж. Каждая команда загружает свежий агрегат
// и перезаписывает его целиком; параллельные изменения не согласуются.
type Service struct {
	repo       domain.SaleRepository
	reader     contracts.SaleReadRepository
	projection contracts.SaleProjection
	readSource ReadSource
	publisher  domain.EventPublisher
	logger     *log.Entry
	metrics    *metrics.SalesMetrics
}

// NewService конструирует сервис поверх основного хранилища.
func NewService(repo domain.SaleRepository, options ...Option) *Service {
	s := &Service{
		repo:       repo,
		readSource: ReadFromWrite,
		publisher:  domain.NopPublisher,
	}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "sales-service")
	}
	if s.publisher == nil {
		s.publisher = domain.NopPublisher
	}
	if s.reader == nil {
		s.readSource = ReadFromWrite
	}
	return s
}

// Create создаёт продажу с позициями и публикует SaleCreated.
func (s *Service) Create(ctx context.Context, in contracts.CreateSaleInput) (result contracts.SaleDTO, err error) {
	defer s.begin(commandCreate)(&err)

	sale, err := in.NewSale()
	if err != nil {
		return contracts.SaleDTO{}, err
	}
	if err := s.repo.Add(ctx, sale); err != nil {
		return contracts.SaleDTO{}, s.internal("add sale", err)
	}

	dto := contracts.FromSale(sale)
	s.project(ctx, dto)
	s.publisher.Publish(domain.NewSaleCreatedEvent(sale.ID(), sale.SaleNumber()))
	return dto, nil
}

// Get возвращает продажу по ID или ResourceNotFound.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (contracts.SaleDTO, error) {
	started := time.Now()
	defer func() { s.metrics.RecordQueryDuration(string(s.readSource), time.Since(started)) }()

	if s.readSource == ReadFromRead {
		dto, err := s.reader.GetByID(ctx, id)
		if err != nil {
			return contracts.SaleDTO{}, s.internal("get sale view", err)
		}
		if dto == nil {
			return contracts.SaleDTO{}, saleNotFound(id)
		}
		return *dto, nil
	}

	sale, err := s.load(ctx, id)
	if err != nil {
		return contracts.SaleDTO{}, err
	}
	return contracts.FromSale(sale), nil
}

// List возвращает страницу продаж с учётом фильтров и сортировки.
func (s *Service) List(ctx context.Context, spec query.Spec) (contracts.PagedResult[contracts.SaleDTO], error) {
	if !spec.Page.Valid() {
		return contracts.PagedResult[contracts.SaleDTO]{}, domain.NewValidationError(
			query.ErrInvalidPage,
			fmt.Sprintf("Page number must be at least 1 and page size between 1 and %d.", query.MaxPageSize),
		)
	}

	started := time.Now()
	defer func() { s.metrics.RecordQueryDuration(string(s.readSource), time.Since(started)) }()

	if s.readSource == ReadFromRead {
		views, total, err := s.reader.GetPaged(ctx, spec)
		if err != nil {
			return contracts.PagedResult[contracts.SaleDTO]{}, s.internal("list sale views", err)
		}
		return contracts.NewPagedResult(views, total, spec.Page), nil
	}

	sales, total, err := s.repo.GetPaged(ctx, spec)
	if err != nil {
		return contracts.PagedResult[contracts.SaleDTO]{}, s.internal("list sales", err)
	}
	return contracts.NewPagedResult(contracts.FromSales(sales), total, spec.Page), nil
}

// Update заменяет реквизиты и позиции продажи. ID в маршруте и в теле должны совпадать.
func (s *Service) Update(ctx context.Context, routeID uuid.UUID, in contracts.UpdateSaleInput) (result contracts.SaleDTO, err error) {
	defer s.begin(commandUpdate)(&err)

	if in.ID != routeID {
		return contracts.SaleDTO{}, domain.NewValidationError(domain.ErrIDMismatch, "Route id does not match body id.")
	}

	sale, err := s.load(ctx, routeID)
	if err != nil {
		return contracts.SaleDTO{}, err
	}
	if err := in.ApplyTo(sale); err != nil {
		return contracts.SaleDTO{}, err
	}
	if err := s.save(ctx, sale); err != nil {
		return contracts.SaleDTO{}, err
	}

	dto := contracts.FromSale(sale)
	s.project(ctx, dto)
	s.publisher.Publish(domain.NewSaleModifiedEvent(sale.ID(), sale.SaleNumber()))
	return dto, nil
}

// Delete удаляет продажу. Событие не публикуется.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer s.begin(commandDelete)(&err)

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return s.internal("delete sale", err)
	}
	if !deleted {
		return saleNotFound(id)
	}

	if s.projection != nil {
		if err := s.projection.Remove(ctx, id); err != nil {
			s.metrics.RecordProjectionFailure()
			s.logger.WithError(err).WithField("sale_id", id).Warn("failed to remove sale view")
		}
	}
	return nil
}

// Cancel отменяет продажу со всеми позициями и публикует SaleCancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (result contracts.SaleDTO, err error) {
	defer s.begin(commandCancel)(&err)

	sale, err := s.load(ctx, id)
	if err != nil {
		return contracts.SaleDTO{}, err
	}
	sale.Cancel()
	if err := s.save(ctx, sale); err != nil {
		return contracts.SaleDTO{}, err
	}

	dto := contracts.FromSale(sale)
	s.project(ctx, dto)
	s.publisher.Publish(domain.NewSaleCancelledEvent(sale.ID(), sale.SaleNumber()))
	return dto, nil
}

// CancelItem отменяет одну позицию и публикует ItemCancelled.
func (s *Service) CancelItem(ctx context.Context, saleID, itemID uuid.UUID) (result contracts.SaleDTO, err error) {
	defer s.begin(commandCancelItem)(&err)

	sale, err := s.load(ctx, saleID)
	if err != nil {
		return contracts.SaleDTO{}, err
	}
	if err := sale.CancelItem(itemID); err != nil {
		return contracts.SaleDTO{}, err
	}
	if err := s.save(ctx, sale); err != nil {
		return contracts.SaleDTO{}, err
	}

	dto := contracts.FromSale(sale)
	s.project(ctx, dto)
	s.publisher.Publish(domain.NewItemCancelledEvent(sale.ID(), itemID))
	return dto, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	sale, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.internal("get sale", err)
	}
	if sale == nil {
		return nil, saleNotFound(id)
	}
	return sale, nil
}

// save перезаписывает агрегат; продажа могла быть удалена между чтением и записью.
func (s *Service) save(ctx context.Context, sale *domain.Sale) error {
	err := s.repo.Update(ctx, sale)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrSaleNotFound) {
		return saleNotFound(sale.ID())
	}
	return s.internal("update sale", err)
}

// project обновляет read-модель. Ошибка не откатывает уже сохранённую запись.
func (s *Service) project(ctx context.Context, dto contracts.SaleDTO) {
	if s.projection == nil {
		return
	}
	if err := s.projection.Project(ctx, dto); err != nil {
		s.metrics.RecordProjectionFailure()
		s.logger.WithError(err).WithField("sale_id", dto.ID).Warn("failed to project sale view")
	}
}

func (s *Service) internal(op string, err error) error {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		return err
	}
	s.logger.WithError(err).WithField("op", op).Error("sales storage failure")
	return domain.NewInternalError(fmt.Errorf("%s: %w", op, err))
}

// begin отмечает старт команды; возвращённая функция фиксирует её результат.
func (s *Service) begin(command string) func(errp *error) {
	s.metrics.CommandStarted()
	return func(errp *error) {
		s.metrics.CommandFinished()

		result := metrics.ResultOK
		if err := *errp; err != nil {
			switch domain.KindOf(err) {
			case domain.KindValidation:
				result = metrics.ResultValidation
			case domain.KindNotFound:
				result = metrics.ResultNotFound
			default:
				result = metrics.ResultError
			}
		}
		s.metrics.RecordCommand(command, result)
	}
}

func saleNotFound(id uuid.UUID) error {
	return domain.NewNotFoundError(
		domain.ErrSaleNotFound,
		"Sale not found",
		fmt.Sprintf("Sale with ID %s was not found.", id),
	)
}
