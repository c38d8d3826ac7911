package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/sales/internal/contracts"
	"github.com/vladislavdragonenkov/sales/internal/query"
	"github.com/vladislavdragonenkov/sales/internal/storage/memory"
	"github.com/vladislavdragonenkov/sales/internal/storage/storagetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "read.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaleReadModel_ProjectGetRemove(t *testing.T) {
	ctx := context.Background()
	model := NewSaleReadModel(openTestStore(t))

	sales := storagetest.Sales(3)
	view := contracts.FromSale(sales[1])
	require.NoError(t, model.Project(ctx, view))

	got, err := model.GetByID(ctx, view.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, view.SaleNumber, got.SaleNumber)
	require.True(t, view.SaleDate.Equal(got.SaleDate))
	require.True(t, view.TotalAmount.Equal(got.TotalAmount))
	require.Len(t, got.Items, len(view.Items))

	view.SaleNumber = "S-RENAMED"
	view.IsCancelled = true
	require.NoError(t, model.Project(ctx, view))

	got, err = model.GetByID(ctx, view.ID)
	require.NoError(t, err)
	require.Equal(t, "S-RENAMED", got.SaleNumber)
	require.True(t, got.IsCancelled)

	require.NoError(t, model.Remove(ctx, view.ID))
	require.NoError(t, model.Remove(ctx, view.ID))
	got, err = model.GetByID(ctx, view.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSaleReadModel_EmptyPage(t *testing.T) {
	model := NewSaleReadModel(openTestStore(t))

	page, total, err := model.GetPaged(context.Background(), query.Spec{Page: query.DefaultPage()})
	require.NoError(t, err)
	require.Empty(t, page)
	require.Zero(t, total)
}

// Read-модель в SQLite и вычислитель в памяти должны отдавать одинаковые страницы.
func TestSaleReadModel_MatchesMemoryBackend(t *testing.T) {
	ctx := context.Background()
	sqliteModel := NewSaleReadModel(openTestStore(t))
	memoryModel := memory.NewSaleReadModel()

	sales := storagetest.Sales(40)
	for _, s := range sales {
		view := contracts.FromSale(s)
		require.NoError(t, sqliteModel.Project(ctx, view))
		require.NoError(t, memoryModel.Project(ctx, view))
	}

	for _, tc := range storagetest.Cases() {
		wantIDs, wantTotal := storagetest.Expected(sales, tc.Spec)

		sqlitePage, sqliteTotal, err := sqliteModel.GetPaged(ctx, tc.Spec)
		require.NoError(t, err, tc.Name)
		storagetest.RequireSamePage(t, tc.Name+" (sqlite)", wantIDs, wantTotal, viewIDs(sqlitePage), sqliteTotal)

		memoryPage, memoryTotal, err := memoryModel.GetPaged(ctx, tc.Spec)
		require.NoError(t, err, tc.Name)
		storagetest.RequireSamePage(t, tc.Name+" (memory)", viewIDs(sqlitePage), sqliteTotal, viewIDs(memoryPage), memoryTotal)
	}
}

func TestOpenInMemory(t *testing.T) {
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.EnsureSchema(context.Background()))
}

func viewIDs(views []contracts.SaleDTO) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	return ids
}
