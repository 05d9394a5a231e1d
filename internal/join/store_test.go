package join

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_LatestWins(t *testing.T) {
	s := NewStore()

	s.UpsertCustomer(CustomerSnapshot{ID: 1, Email: "a@x.com"})
	s.UpsertCustomer(CustomerSnapshot{ID: 1, Email: "b@x.com"})

	customers := s.Customers()
	require.Len(t, customers, 1)
	require.Equal(t, "b@x.com", customers[0].Email)
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := NewStore()
	s.UpsertProduct(ProductSnapshot{ID: 101, SKU: "S1"})

	products := s.Products()
	s.UpsertProduct(ProductSnapshot{ID: 102, SKU: "S2"})

	// The slice taken before the second upsert is unaffected by it.
	require.Len(t, products, 1)
	require.Len(t, s.Products(), 2)
}

func TestLedger_MarkIsIdempotent(t *testing.T) {
	l := NewLedger()
	key := PairKey{CustomerID: 1, ProductID: 101}

	require.False(t, l.Contains(key))
	l.Mark(key)
	require.True(t, l.Contains(key))
	l.Mark(key)
	require.Equal(t, 1, l.Size())
	require.False(t, l.Contains(PairKey{CustomerID: 101, ProductID: 1}), "key fields are not interchangeable")
}
