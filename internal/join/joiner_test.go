package join

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func testCustomer(id int64, email string) CustomerSnapshot {
	return CustomerSnapshot{
		ID:        id,
		Name:      fmt.Sprintf("Customer %d", id),
		Email:     email,
		CreatedAt: "2024-01-15T10:00:00Z",
	}
}

func testProduct(id int64, sku string, price float64) ProductSnapshot {
	return ProductSnapshot{
		ID:    id,
		SKU:   sku,
		Name:  fmt.Sprintf("Product %d", id),
		Stock: 25,
		Price: price,
	}
}

func TestJoiner_CustomerThenProduct(t *testing.T) {
	j := NewJoiner()

	records := j.OnCustomer(testCustomer(1, "a@x.com"))
	require.Empty(t, records, "first arrival sees an empty opposite collection")

	records = j.OnProduct(testProduct(101, "S1", 19.99))
	require.Len(t, records, 1)
	require.Equal(t, AnalyticsRecord{
		CustomerID:    1,
		ProductID:     101,
		SKU:           "S1",
		CustomerEmail: "a@x.com",
		Units:         1,
		TotalValue:    19.99,
	}, records[0])
}

func TestJoiner_ProductThenCustomer(t *testing.T) {
	j := NewJoiner()

	require.Empty(t, j.OnProduct(testProduct(101, "S1", 19.99)))

	records := j.OnCustomer(testCustomer(1, "a@x.com"))
	require.Len(t, records, 1)
	require.Equal(t, PairKey{CustomerID: 1, ProductID: 101}, records[0].Key())
	require.Equal(t, "S1", records[0].SKU)
}

func TestJoiner_RedeliveryEmitsNothing(t *testing.T) {
	j := NewJoiner()

	j.OnProduct(testProduct(101, "S1", 19.99))
	require.Len(t, j.OnCustomer(testCustomer(1, "a@x.com")), 1)

	// Same product arrives twice in a row with no new customers.
	require.Empty(t, j.OnProduct(testProduct(101, "S1", 19.99)))
	require.Empty(t, j.OnProduct(testProduct(101, "S1", 19.99)))

	// Redelivered customer likewise produces no duplicates.
	require.Empty(t, j.OnCustomer(testCustomer(1, "a@x.com")))
	require.Equal(t, 1, j.EmittedPairs())
}

func TestJoiner_LatestWinsUpsert(t *testing.T) {
	j := NewJoiner()

	j.OnCustomer(testCustomer(1, "old@x.com"))
	j.OnCustomer(testCustomer(1, "new@x.com"))

	// The pair has not been emitted yet, so the record carries the
	// replacement email.
	records := j.OnProduct(testProduct(101, "S1", 5.00))
	require.Len(t, records, 1)
	require.Equal(t, "new@x.com", records[0].CustomerEmail)

	// An update after emission does not retroactively correct the pair, but
	// subsequent pairs see the latest snapshot.
	j.OnCustomer(testCustomer(1, "newer@x.com"))
	require.Equal(t, 1, j.EmittedPairs())

	records = j.OnProduct(testProduct(102, "S2", 7.50))
	require.Len(t, records, 1)
	require.Equal(t, "newer@x.com", records[0].CustomerEmail)
}

func TestJoiner_RecordsOrderedByOppositeID(t *testing.T) {
	j := NewJoiner()

	j.OnProduct(testProduct(103, "S3", 3.00))
	j.OnProduct(testProduct(101, "S1", 1.00))
	j.OnProduct(testProduct(102, "S2", 2.00))

	records := j.OnCustomer(testCustomer(1, "a@x.com"))
	require.Len(t, records, 3)
	require.Equal(t, []int64{101, 102, 103}, []int64{
		records[0].ProductID, records[1].ProductID, records[2].ProductID,
	})
}

func TestJoiner_PartialEmissionOnNewProduct(t *testing.T) {
	j := NewJoiner()

	j.OnProduct(testProduct(101, "S1", 1.00))
	require.Len(t, j.OnCustomer(testCustomer(1, "a@x.com")), 1)
	require.Len(t, j.OnCustomer(testCustomer(2, "b@x.com")), 1)

	// A new product pairs with every known customer exactly once.
	records := j.OnProduct(testProduct(102, "S2", 2.00))
	require.Len(t, records, 2)
	require.Equal(t, 4, j.EmittedPairs())
}

// TestJoiner_AtMostOnceUnderConcurrency drives the two stream entry points
// from racing goroutines, mirroring the two ingestion loops. Every pair must
// be emitted exactly once regardless of interleaving.
func TestJoiner_AtMostOnceUnderConcurrency(t *testing.T) {
	const n = 50

	j := NewJoiner()

	var (
		mu   sync.Mutex
		all  []AnalyticsRecord
		wg   sync.WaitGroup
		keep = func(records []AnalyticsRecord) {
			mu.Lock()
			all = append(all, records...)
			mu.Unlock()
		}
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := int64(1); i <= n; i++ {
			keep(j.OnCustomer(testCustomer(i, fmt.Sprintf("c%d@x.com", i))))
		}
	}()
	go func() {
		defer wg.Done()
		for i := int64(1); i <= n; i++ {
			keep(j.OnProduct(testProduct(1000+i, fmt.Sprintf("S%d", i), float64(i))))
		}
	}()
	wg.Wait()

	require.Len(t, all, n*n, "every pair emitted after both sides arrived")

	seen := make(map[PairKey]struct{}, len(all))
	for _, r := range all {
		key := r.Key()
		_, dup := seen[key]
		require.False(t, dup, "pair %+v emitted more than once", key)
		seen[key] = struct{}{}
	}
	require.Equal(t, n*n, j.EmittedPairs())
}
