// Package storagetest содержит общий набор данных и запросов для проверки
// того, что все хранилища продаж фильтруют, сортируют и режут страницы одинаково.
package storagetest

import (
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/sales/internal/domain"
	"github.com/vladislavdragonenkov/sales/internal/query"
)

var (
	customers = []string{"Acme Corp", "New Acme", "Ac me", "Globex", "acme_labs", "Initech 50%", "ÉCOLE Sud"}
	branches  = []string{"Downtown", "Airport", "Harbor"}
	prices    = []string{"10.00", "2.50", "99.99", "0.10", "15"}
)

// Sales строит n продаж с повторяющимися суммами, датами и клиентами,
// чтобы сортировка регулярно упиралась в ничьи.
func Sales(n int) []*domain.Sale {
	base := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	sales := make([]*domain.Sale, 0, n)
	for i := 0; i < n; i++ {
		sale := domain.NewSale(
			fmt.Sprintf("S-%03d", (i*7)%n),
			base.Add(time.Duration(i%9)*36*time.Hour),
			domain.NewExternalIdentity(fmt.Sprintf("c-%d", i%len(customers)), customers[i%len(customers)]),
			domain.NewExternalIdentity(fmt.Sprintf("b-%d", i%len(branches)), branches[i%len(branches)]),
		)
		for j := 0; j <= i%3; j++ {
			qty, _ := domain.QuantityFrom(1 + (i+j*5)%20)
			item, err := domain.NewSaleItem(
				domain.NewExternalIdentity(fmt.Sprintf("p-%d", j), fmt.Sprintf("Product %d", j)),
				qty,
				domain.MustMoney(prices[(i+j)%len(prices)]),
			)
			if err != nil {
				panic(err)
			}
			_ = sale.AddItem(item)
		}
		switch {
		case i%7 == 0:
			sale.Cancel()
		case i%4 == 0:
			_ = sale.CancelItem(sale.Items()[0].ID())
		}
		sales = append(sales, sale)
	}
	return sales
}

// Case — именованный запрос для сравнения хранилищ.
type Case struct {
	Name string
	Spec query.Spec
}

// Cases возвращает набор запросов, покрывающий все фильтры и порядки.
func Cases() []Case {
	mustOrder := func(raw string) query.Order {
		o, err := query.ParseOrder(raw)
		if err != nil {
			panic(err)
		}
		return o
	}
	page := func(n, size int) query.Page { return query.Page{Number: n, Size: size} }
	filters := func(raw map[string]string) query.Criteria { return query.ParseFilters(raw) }

	return []Case{
		{Name: "default", Spec: query.Spec{Page: page(1, 10)}},
		{Name: "second page", Spec: query.Spec{Page: page(2, 10)}},
		{Name: "past the end", Spec: query.Spec{Page: page(50, 10)}},
		{Name: "total desc then number", Spec: query.Spec{Page: page(1, 100), Order: mustOrder("totalAmount desc,saleNumber asc")}},
		{Name: "date asc", Spec: query.Spec{Page: page(2, 7), Order: mustOrder("saleDate")}},
		{Name: "date desc total asc", Spec: query.Spec{Page: page(1, 15), Order: mustOrder("saleDate desc, totalAmount asc")}},
		{Name: "customer contains", Spec: query.Spec{Page: page(1, 100), Criteria: filters(map[string]string{"customer": "*ACME*"})}},
		{Name: "customer suffix", Spec: query.Spec{Page: page(1, 100), Criteria: filters(map[string]string{"customer": "*acme"})}},
		{Name: "customer prefix", Spec: query.Spec{Page: page(1, 100), Criteria: filters(map[string]string{"customer": "acme*"})}},
		{Name: "customer exact", Spec: query.Spec{Page: page(1, 100), Criteria: filters(map[string]string{"customer": "globex"})}},
		{Name: "customer non-ascii case", Spec: query.Spec{Page: page(1, 100), Criteria: filters(map[string]string{"customer": "école*"})}},
		{Name: "like metacharacters", Spec: query.Spec{Page: page(1, 100), Criteria: filters(map[string]string{"customer": "*_labs"})}},
		{Name: "percent literal", Spec: query.Spec{Page: page(1, 100), Criteria: filters(map[string]string{"customer": "*50%"})}},
		{Name: "branch and number", Spec: query.Spec{Page: page(1, 100), Criteria: filters(map[string]string{"branch": "Air*", "saleNumber": "S-0*"})}},
		{Name: "cancelled", Spec: query.Spec{Page: page(1, 100), Criteria: filters(map[string]string{"isCancelled": "true"})}},
		{Name: "active", Spec: query.Spec{Page: page(1, 100), Criteria: filters(map[string]string{"isCancelled": "False"})}},
		{Name: "date range", Spec: query.Spec{Page: page(1, 100), Criteria: filters(map[string]string{
			"_minSaleDate": "2024-01-03", "_maxSaleDate": "2024-01-08T09:30:00Z",
		})}},
		{Name: "sub-microsecond date bounds", Spec: query.Spec{Page: page(1, 100), Criteria: filters(map[string]string{
			"_minSaleDate": "2024-01-04T09:30:00.0000004Z", "_maxSaleDate": "2024-01-04T09:30:00.0000009Z",
		})}},
		{Name: "amount range", Spec: query.Spec{Page: page(1, 100), Order: mustOrder("totalAmount"), Criteria: filters(map[string]string{
			"_minTotalAmount": "10", "_maxTotalAmount": "150.5",
		})}},
		{Name: "fail open", Spec: query.Spec{Page: page(1, 100), Criteria: filters(map[string]string{
			"isCancelled": "maybe", "_minSaleDate": "soon", "unknown": "x",
		})}},
	}
}
