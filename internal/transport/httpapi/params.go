package httpapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/query"
)

const (
	paramPage  = "_page"
	paramSize  = "_size"
	paramOrder = "_order"
)

// parseListSpec разбирает параметры списка: _page, _size, _order, а все
// остальные ключи передаёт в фильтры как есть.
func parseListSpec(values url.Values) (query.Spec, error) {
	page := query.DefaultPage()

	if raw := strings.TrimSpace(values.Get(paramPage)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return query.Spec{}, domain.NewValidationError(
				fmt.Errorf("%w: %s=%q", query.ErrInvalidPage, paramPage, raw),
				"Page number must be a positive integer.",
			)
		}
		page.Number = n
	}

	if raw := strings.TrimSpace(values.Get(paramSize)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > query.MaxPageSize {
			return query.Spec{}, domain.NewValidationError(
				fmt.Errorf("%w: %s=%q", query.ErrInvalidPage, paramSize, raw),
				fmt.Sprintf("Page size must be between 1 and %d.", query.MaxPageSize),
			)
		}
		page.Size = n
	}

	if page.Number > query.MaxPageNumber(page.Size) {
		return query.Spec{}, domain.NewValidationError(
			fmt.Errorf("%w: %s=%d is out of range for %s=%d", query.ErrInvalidPage, paramPage, page.Number, paramSize, page.Size),
			fmt.Sprintf("Page number must not exceed %d for page size %d.", query.MaxPageNumber(page.Size), page.Size),
		)
	}

	order, err := query.ParseOrder(values.Get(paramOrder))
	if err != nil {
		return query.Spec{}, domain.NewValidationError(err, fmt.Sprintf("Invalid _order value: %v.", err))
	}

	filters := make(map[string]string, len(values))
	for key, vals := range values {
		if key == paramPage || key == paramSize || key == paramOrder || len(vals) == 0 {
			continue
		}
		filters[key] = vals[0]
	}

	return query.Spec{
		Page:     page,
		Order:    order,
		Criteria: query.ParseFilters(filters),
	}, nil
}
