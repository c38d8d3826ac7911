package storagetest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/sales/internal/contracts"
	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/query"
)

// Expected считает эталонный результат запроса по агрегатам в памяти.
func Expected(sales []*domain.Sale, spec query.Spec) ([]uuid.UUID, int) {
	page, total := query.Apply(sales, contracts.SaleRow, spec)
	ids := make([]uuid.UUID, 0, len(page))
	for _, s := range page {
		ids = append(ids, s.ID())
	}
	return ids, total
}

// RequireSamePage сравнивает результат хранилища с эталоном по порядку ID и общему числу.
func RequireSamePage(t testing.TB, name string, wantIDs []uuid.UUID, wantTotal int, gotIDs []uuid.UUID, gotTotal int) {
	t.Helper()
	require.Equal(t, wantTotal, gotTotal, "%s: total", name)
	if len(wantIDs) == 0 && len(gotIDs) == 0 {
		return
	}
	require.Equal(t, wantIDs, gotIDs, "%s: page order", name)
}
