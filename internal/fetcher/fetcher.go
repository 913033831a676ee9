package fetcher

import (
	"context"
	"time"

	"metalwatch/internal/storage"
)

// PriceFetcher retrieves one day of published metal prices.
type PriceFetcher interface {
	FetchPrices(ctx context.Context, day time.Time) ([]storage.PriceRecord, error)
}
