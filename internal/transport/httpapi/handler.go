// Package httpapi — HTTP-граница сервиса продаж поверх chi.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/contracts"
	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/query"
)

const maxBodyBytes = 1 << 20

var (
	errMalformedBody = errors.New("malformed request body")
	errInvalidID     = errors.New("invalid identifier")
)

// SalesService — операции, которые обслуживает HTTP API.
type SalesService interface {
	Create(ctx context.Context, in contracts.CreateSaleInput) (contracts.SaleDTO, error)
	Get(ctx context.Context, id uuid.UUID) (contracts.SaleDTO, error)
	List(ctx context.Context, spec query.Spec) (contracts.PagedResult[contracts.SaleDTO], error)
	Update(ctx context.Context, routeID uuid.UUID, in contracts.UpdateSaleInput) (contracts.SaleDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Cancel(ctx context.Context, id uuid.UUID) (contracts.SaleDTO, error)
	CancelItem(ctx context.Context, saleID, itemID uuid.UUID) (contracts.SaleDTO, error)
}

// Handler связывает маршруты с сервисом продаж.
type Handler struct {
	service  SalesService
	validate *validator.Validate
	logger   *log.Entry
}

// NewHandler создаёт обработчик.
func NewHandler(service SalesService, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{
		service:  service,
		validate: newValidator(),
		logger:   logger,
	}
}

// Router возвращает chi-роутер со всеми маршрутами /sales.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.listSales)
		r.Post("/", h.createSale)
		r.Get("/{id}", h.getSale)
		r.Put("/{id}", h.updateSale)
		r.Delete("/{id}", h.deleteSale)
		r.Post("/{id}/cancel", h.cancelSale)
		r.Post("/{id}/items/{itemId}/cancel", h.cancelItem)
	})

	return r
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	spec, err := parseListSpec(r.URL.Query())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	page, err := h.service.List(r.Context(), spec)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sale)
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var in contracts.CreateSaleInput
	if err := h.decode(w, r, &in); err != nil {
		h.respondError(w, r, err)
		return
	}

	sale, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/sales/"+sale.ID.String())
	respondJSON(w, http.StatusCreated, sale)
}

func (h *Handler) updateSale(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var in contracts.UpdateSaleInput
	if err := h.decode(w, r, &in); err != nil {
		h.respondError(w, r, err)
		return
	}

	sale, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sale)
}

func (h *Handler) deleteSale(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cancelSale(w http.ResponseWriter, r *http.Request) {
	id, err := routeID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	sale, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sale)
}

func (h *Handler) cancelItem(w http.ResponseWriter, r *http.Request) {
	saleID, err := routeID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	itemID, err := routeID(r, "itemId")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	sale, err := h.service.CancelItem(r.Context(), saleID, itemID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sale)
}

// decode читает JSON-тело и проверяет его теги validate.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return domain.NewValidationError(fmt.Errorf("%w: %v", errMalformedBody, err), "Request body is not valid JSON for this operation.")
	}

	if err := h.validate.Struct(dest); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return domain.NewValidationError(err, describeFieldErrors(fieldErrs))
		}
		return domain.NewValidationError(err, "Request body failed validation.")
	}
	return nil
}

func routeID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(
			fmt.Errorf("%w: %s", errInvalidID, param),
			fmt.Sprintf("Route parameter %s must be a UUID, got %q.", param, raw),
		)
	}
	return id, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	// В сообщениях используем имена полей из JSON
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func describeFieldErrors(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := fieldPath(fe)
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", field))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "gt":
			parts = append(parts, fmt.Sprintf("%s must be greater than %s", field, fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ") + "."
}

// fieldPath возвращает путь поля без имени корневой структуры,
// например items[0].quantity.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.TrimPrefix(ns, "CreateSaleInput.")
}
