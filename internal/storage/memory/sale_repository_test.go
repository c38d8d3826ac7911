package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/query"
	"github.com/vladislavdragonenkov/sales/internal/storage/memory"
	"github.com/vladislavdragonenkov/sales/internal/storage/storagetest"
)

func newSale(t *testing.T) *domain.Sale {
	t.Helper()
	sale := domain.NewSale("S-1", time.Now(), domain.NewExternalIdentity("c-1", "Acme"), domain.NewExternalIdentity("b-1", "Main"))
	qty, _ := domain.QuantityFrom(4)
	item, err := domain.NewSaleItem(domain.NewExternalIdentity("p-1", "Widget"), qty, domain.MustMoney("10"))
	if err != nil {
		t.Fatalf("new item: %v", err)
	}
	if err := sale.AddItem(item); err != nil {
		t.Fatalf("add item: %v", err)
	}
	return sale
}

func TestSaleRepository_AddGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSaleRepository()
	sale := newSale(t)

	if err := repo.Add(ctx, sale); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := repo.Add(ctx, sale); !errors.Is(err, domain.ErrSaleAlreadyExists) {
		t.Fatalf("expected ErrSaleAlreadyExists, got %v", err)
	}

	stored, err := repo.GetByID(ctx, sale.ID())
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored == nil || stored.ID() != sale.ID() {
		t.Fatalf("expected sale %s, got %v", sale.ID(), stored)
	}
	if !stored.TotalAmount().Equal(domain.MustMoney("36")) {
		t.Fatalf("expected total 36, got %s", stored.TotalAmount())
	}

	missing, err := repo.GetByID(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing sale, got %v, %v", missing, err)
	}
}

func TestSaleRepository_StoresSnapshots(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSaleRepository()
	sale := newSale(t)
	if err := repo.Add(ctx, sale); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	sale.Cancel()

	stored, _ := repo.GetByID(ctx, sale.ID())
	if stored.IsCancelled() {
		t.Fatalf("mutation after Add must not leak into the store")
	}
}

func TestSaleRepository_UpdateDelete(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSaleRepository()
	sale := newSale(t)
	if err := repo.Add(ctx, sale); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	sale.Cancel()
	if err := repo.Update(ctx, sale); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	stored, _ := repo.GetByID(ctx, sale.ID())
	if !stored.IsCancelled() || !stored.TotalAmount().IsZero() {
		t.Fatalf("expected cancelled sale with zero total")
	}

	deleted, err := repo.Delete(ctx, sale.ID())
	if err != nil || !deleted {
		t.Fatalf("expected delete to succeed, got %v, %v", deleted, err)
	}
	deleted, err = repo.Delete(ctx, sale.ID())
	if err != nil || deleted {
		t.Fatalf("expected second delete to report false, got %v, %v", deleted, err)
	}
	if err := repo.Update(ctx, sale); !errors.Is(err, domain.ErrSaleNotFound) {
		t.Fatalf("expected ErrSaleNotFound on update of deleted sale, got %v", err)
	}
}

func TestSaleRepository_GetPagedMatchesEvaluator(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSaleRepository()
	sales := storagetest.Sales(40)
	for _, s := range sales {
		if err := repo.Add(ctx, s); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	for _, tc := range storagetest.Cases() {
		wantIDs, wantTotal := storagetest.Expected(sales, tc.Spec)

		page, total, err := repo.GetPaged(ctx, tc.Spec)
		if err != nil {
			t.Fatalf("%s: get paged: %v", tc.Name, err)
		}
		gotIDs := make([]uuid.UUID, 0, len(page))
		for _, s := range page {
			gotIDs = append(gotIDs, s.ID())
		}
		storagetest.RequireSamePage(t, tc.Name, wantIDs, wantTotal, gotIDs, total)
	}
}

func TestSaleRepository_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := memory.NewSaleRepository()
	if _, _, err := repo.GetPaged(ctx, query.Spec{Page: query.DefaultPage()}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
