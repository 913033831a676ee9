package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"metalwatch/internal/query"
	"metalwatch/internal/storage"
)

const feedPricesPath = "/prices"

var (
	eight    = decimal.NewFromInt(8)
	thousand = decimal.NewFromInt(1000)
)

// FeedOptions parameterise the price feed client.
type FeedOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Metals restricts which codes are stored; empty keeps everything.
	Metals []string
}

// Feed reads fine-metal prices per gram from an HTTP feed and expands them
// into stored records.
type Feed struct {
	opts   FeedOptions
	client *resty.Client
	logger zerolog.Logger
}

// NewFeed constructs a feed client.
func NewFeed(opts FeedOptions, logger zerolog.Logger) *Feed {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "metalwatch/1.0")
	if opts.APIKey != "" {
		client.SetHeader("X-API-Key", opts.APIKey)
	}
	return &Feed{
		opts:   opts,
		client: client,
		logger: logger.With().Str("component", "price_feed").Logger(),
	}
}

type feedResponse struct {
	Date   string            `json:"date"`
	Prices map[string]string `json:"prices"`
}

type feedError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// FetchPrices implements PriceFetcher. A zero day asks for the latest
// published prices.
func (f *Feed) FetchPrices(ctx context.Context, day time.Time) ([]storage.PriceRecord, error) {
	if f.opts.BaseURL == "" {
		return nil, errors.New("price feed url not configured")
	}

	req := f.client.R().SetContext(ctx)
	if !day.IsZero() {
		req.SetQueryParam("date", day.Format("2006-01-02"))
	}
	resp, err := req.Get(feedPricesPath)
	if err != nil {
		return nil, fmt.Errorf("request price feed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode(), resp.Body())
	}

	var payload feedResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("decode price feed: %w", err)
	}
	published, err := time.Parse("2006-01-02", payload.Date)
	if err != nil {
		return nil, fmt.Errorf("parse feed date %q: %w", payload.Date, err)
	}
	if !day.IsZero() && !published.Equal(storage.Day(day)) {
		return nil, fmt.Errorf("feed returned %s for requested %s", payload.Date, day.Format("2006-01-02"))
	}

	recs, err := f.expand(published, payload.Prices)
	if err != nil {
		return nil, err
	}
	f.logger.Debug().Str("date", payload.Date).Int("records", len(recs)).Msg("prices fetched")
	return recs, nil
}

func (f *Feed) expand(day time.Time, prices map[string]string) ([]storage.PriceRecord, error) {
	wanted := make(map[string]struct{}, len(f.opts.Metals))
	for _, m := range f.opts.Metals {
		wanted[strings.ToUpper(m)] = struct{}{}
	}

	codes := make([]string, 0, len(prices))
	for code := range prices {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	recs := make([]storage.PriceRecord, 0, len(prices)+2)
	for _, code := range codes {
		metal := strings.ToUpper(strings.TrimSpace(code))
		if len(wanted) > 0 {
			if _, ok := wanted[metal]; !ok {
				continue
			}
		}
		fine, err := decimal.NewFromString(prices[code])
		if err != nil {
			return nil, fmt.Errorf("parse %s price: %w", metal, err)
		}
		if !fine.IsPositive() {
			return nil, fmt.Errorf("%s price must be positive, got %s", metal, fine)
		}

		if metal != query.Gold {
			recs = append(recs, newRecord(day, metal, "", fine))
			continue
		}
		for _, p := range query.Purities {
			recs = append(recs, newRecord(day, metal, p.Carat, fine.Mul(p.Multiplier)))
		}
	}
	return recs, nil
}

func newRecord(day time.Time, metal, carat string, perGram decimal.Decimal) storage.PriceRecord {
	perGram = perGram.Round(2)
	return storage.PriceRecord{
		Date:               day,
		Metal:              metal,
		Carat:              carat,
		PricePerGram:       perGram,
		PricePerEightGrams: decimal.NewNullDecimal(perGram.Mul(eight).Round(2)),
		PricePerKilogram:   decimal.NewNullDecimal(perGram.Mul(thousand).Round(2)),
	}
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr feedError
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("price feed error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("price feed error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("price feed error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("price feed error (%d)", status)
}

var _ PriceFetcher = (*Feed)(nil)
