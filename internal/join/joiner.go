// Package join implements the in-memory stream-join core. The Joiner holds
// the latest snapshot of every customer and product seen so far and, on each
// arrival, derives analytics records for the (customer, product) pairs that
// have not been emitted yet. A grow-only ledger of emitted pairs makes
// redelivered and repeated messages harmless.
//
// The Joiner is pure state transition plus value production: it performs no
// network or broker I/O. Callers forward the returned records themselves.
package join

import (
	"log/slog"
	"os"
	"sync"
)

type JoinerOption func(*Joiner)

func WithLogger(logger *slog.Logger) JoinerOption {
	return func(j *Joiner) {
		j.logger = logger
	}
}

// WithJoinerMetrics injects prometheus metrics into the Joiner.
func WithJoinerMetrics(metrics *JoinerMetrics) JoinerOption {
	return func(j *Joiner) {
		j.metrics = metrics
	}
}

// Joiner owns the entity store and the idempotency ledger. A single mutex
// covers every OnCustomer/OnProduct call end to end: the check against the
// ledger and the subsequent mark must be atomic with respect to the other
// stream's loop, otherwise two racing joins could each miss the other's
// freshly inserted entity or emit the same pair twice.
type Joiner struct {
	mu      sync.Mutex
	store   *Store
	ledger  *Ledger
	logger  *slog.Logger
	metrics *JoinerMetrics
}

func NewJoiner(opts ...JoinerOption) *Joiner {
	j := &Joiner{
		store:   NewStore(),
		ledger:  NewLedger(),
		metrics: NewJoinerMetrics(nil), // Always set, unregistered by default
	}

	for _, opt := range opts {
		opt(j)
	}

	if j.logger == nil {
		j.logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return j
}

// OnCustomer upserts the customer snapshot and returns one analytics record
// for every known product whose pair with this customer has not been emitted
// before. Records are ordered by product ID. The returned set and the ledger
// are always consistent: a pair is marked if and only if its record is
// returned from some call.
func (j *Joiner) OnCustomer(c CustomerSnapshot) []AnalyticsRecord {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.store.UpsertCustomer(c)
	j.metrics.CustomersUpserted.Inc()

	var records []AnalyticsRecord
	for _, p := range j.store.Products() {
		key := PairKey{CustomerID: c.ID, ProductID: p.ID}
		if j.ledger.Contains(key) {
			j.metrics.PairsDeduplicated.Inc()
			continue
		}
		j.ledger.Mark(key)
		records = append(records, buildRecord(c, p))
	}

	j.finishJoin("customer", c.ID, records)
	return records
}

// OnProduct is the symmetric operation against all known customers.
func (j *Joiner) OnProduct(p ProductSnapshot) []AnalyticsRecord {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.store.UpsertProduct(p)
	j.metrics.ProductsUpserted.Inc()

	var records []AnalyticsRecord
	for _, c := range j.store.Customers() {
		key := PairKey{CustomerID: c.ID, ProductID: p.ID}
		if j.ledger.Contains(key) {
			j.metrics.PairsDeduplicated.Inc()
			continue
		}
		j.ledger.Mark(key)
		records = append(records, buildRecord(c, p))
	}

	j.finishJoin("product", p.ID, records)
	return records
}

// EmittedPairs returns the current size of the idempotency ledger.
func (j *Joiner) EmittedPairs() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.ledger.Size()
}

func (j *Joiner) finishJoin(stream string, id int64, records []AnalyticsRecord) {
	if len(records) == 0 {
		return
	}
	j.metrics.PairsEmitted.Add(float64(len(records)))
	j.logger.Debug("built analytics records", "stream", stream, "entity_id", id, "records", len(records))
}

// buildRecord derives the analytics record for a pair. Units is fixed at 1
// by current policy, so the total value is the product price.
func buildRecord(c CustomerSnapshot, p ProductSnapshot) AnalyticsRecord {
	return AnalyticsRecord{
		CustomerID:    c.ID,
		ProductID:     p.ID,
		SKU:           p.SKU,
		CustomerEmail: c.Email,
		Units:         1,
		TotalValue:    p.Price,
	}
}
