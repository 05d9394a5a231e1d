package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/northbridge-data/analytics-join/internal/join"
)

// CustomerHandler returns the handler for the customer stream: decode and
// validate the message, then run it through the join engine. A message that
// fails validation never reaches the store or the ledger.
func CustomerHandler(j *join.Joiner) HandleFunc {
	return func(ctx context.Context, body []byte) ([]join.AnalyticsRecord, error) {
		var c join.CustomerSnapshot
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, fmt.Errorf("failed to decode customer message: %w", err)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("invalid customer message: %w", err)
		}
		return j.OnCustomer(c), nil
	}
}

// ProductHandler returns the handler for the inventory stream.
func ProductHandler(j *join.Joiner) HandleFunc {
	return func(ctx context.Context, body []byte) ([]join.AnalyticsRecord, error) {
		var p join.ProductSnapshot
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("failed to decode product message: %w", err)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid product message: %w", err)
		}
		return j.OnProduct(p), nil
	}
}
