package join

import (
	"errors"
	"fmt"
	"time"
)

// CustomerSnapshot is the latest known state of a customer as delivered on
// the customer stream. A later message for the same ID replaces the earlier
// snapshot entirely.
type CustomerSnapshot struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// Validate checks the fields every customer message must carry. A message
// that decodes as JSON but misses required fields is a deserialization
// failure, not a customer: admitting it would permanently mark bogus pairs
// in the grow-only ledger.
func (c CustomerSnapshot) Validate() error {
	if c.ID <= 0 {
		return fmt.Errorf("customer id must be positive, got %d", c.ID)
	}
	if c.Name == "" {
		return errors.New("customer name is required")
	}
	if c.Email == "" {
		return errors.New("customer email is required")
	}
	if c.CreatedAt == "" {
		return errors.New("customer created_at is required")
	}
	return nil
}

// ProductSnapshot is the latest known state of a product as delivered on the
// inventory stream.
type ProductSnapshot struct {
	ID    int64   `json:"id"`
	SKU   string  `json:"sku"`
	Name  string  `json:"name"`
	Stock int64   `json:"stock"`
	Price float64 `json:"price"`
}

// Validate checks the fields every product message must carry. A zero stock
// count is legitimate; a zero ID or empty SKU is not.
func (p ProductSnapshot) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("product id must be positive, got %d", p.ID)
	}
	if p.SKU == "" {
		return errors.New("product sku is required")
	}
	if p.Name == "" {
		return errors.New("product name is required")
	}
	if p.Stock < 0 {
		return fmt.Errorf("product stock must not be negative, got %d", p.Stock)
	}
	if p.Price < 0 {
		return fmt.Errorf("product price must not be negative, got %v", p.Price)
	}
	return nil
}

// PairKey identifies a (customer, product) combination. It is comparable and
// used directly as a ledger map key.
type PairKey struct {
	CustomerID int64
	ProductID  int64
}

// AnalyticsRecord is the derived record for a pair, built at most once per
// PairKey for the lifetime of the process.
type AnalyticsRecord struct {
	CustomerID    int64   `json:"customer_id"`
	ProductID     int64   `json:"product_id"`
	SKU           string  `json:"sku,omitempty"`
	CustomerEmail string  `json:"customer_email,omitempty"`
	Units         int64   `json:"units"`
	TotalValue    float64 `json:"total_value"`
}

// Key returns the pair identity of the record.
func (r AnalyticsRecord) Key() PairKey {
	return PairKey{CustomerID: r.CustomerID, ProductID: r.ProductID}
}

// AnalyticsBatch is the wire payload delivered to the analytics sink. It is
// constructed fresh for every send and never persisted.
type AnalyticsBatch struct {
	BatchID     string            `json:"batch_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Records     []AnalyticsRecord `json:"records"`
}
