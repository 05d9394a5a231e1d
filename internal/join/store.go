package join

import (
	"cmp"
	"slices"
)

// Store holds the latest snapshot per entity ID for both streams. It does no
// locking of its own; the Joiner serializes all access under a single mutex
// so that a join iteration is consistent with concurrent upserts.
type Store struct {
	customers map[int64]CustomerSnapshot
	products  map[int64]ProductSnapshot
}

func NewStore() *Store {
	return &Store{
		customers: make(map[int64]CustomerSnapshot),
		products:  make(map[int64]ProductSnapshot),
	}
}

// UpsertCustomer replaces any existing snapshot for the customer's ID.
func (s *Store) UpsertCustomer(c CustomerSnapshot) {
	s.customers[c.ID] = c
}

// UpsertProduct replaces any existing snapshot for the product's ID.
func (s *Store) UpsertProduct(p ProductSnapshot) {
	s.products[p.ID] = p
}

// Customers returns the current customer snapshots ordered by ID. The slice
// is a copy taken at call time; later upserts do not affect it.
func (s *Store) Customers() []CustomerSnapshot {
	out := make([]CustomerSnapshot, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b CustomerSnapshot) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Products returns the current product snapshots ordered by ID.
func (s *Store) Products() []ProductSnapshot {
	out := make([]ProductSnapshot, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b ProductSnapshot) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
