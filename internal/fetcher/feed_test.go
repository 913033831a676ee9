package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestFeedMissingURL(t *testing.T) {
	f := NewFeed(FeedOptions{}, noopLogger())
	if _, err := f.FetchPrices(context.Background(), time.Time{}); err == nil {
		t.Fatal("missing url should fail")
	}
}

func TestFeedHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "unknown date"})
	}))
	defer srv.Close()

	f := NewFeed(FeedOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := f.FetchPrices(context.Background(), time.Time{}); err == nil {
		t.Fatal("HTTP 400 should fail")
	}
}

func TestFeedExpandsGoldCarats(t *testing.T) {
	var gotDate, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDate = r.URL.Query().Get("date")
		gotKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"date":   "2026-03-01",
			"prices": map[string]string{"XAU": "8300", "XAG": "95.2", "XPD": "3100"},
		})
	}))
	defer srv.Close()

	f := NewFeed(FeedOptions{BaseURL: srv.URL, APIKey: "k", Metals: []string{"xau", "xag"}}, noopLogger())
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	recs, err := f.FetchPrices(context.Background(), day)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotDate != "2026-03-01" || gotKey != "k" {
		t.Fatalf("unexpected request date=%q key=%q", gotDate, gotKey)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 3 gold carats and silver, got %d", len(recs))
	}

	// XAG sorts before XAU
	if recs[0].Metal != "XAG" || recs[0].PricePerGram.String() != "95.2" {
		t.Fatalf("unexpected silver record %+v", recs[0])
	}
	want := map[string]string{"24K": "8291.7", "22K": "7602.8", "18K": "6225"}
	for _, rec := range recs[1:] {
		if rec.Metal != "XAU" {
			t.Fatalf("unexpected metal %s", rec.Metal)
		}
		if rec.PricePerGram.String() != want[rec.Carat] {
			t.Fatalf("%s: expected %s, got %s", rec.Carat, want[rec.Carat], rec.PricePerGram)
		}
	}
	if got := recs[2].PricePerEightGrams.Decimal.String(); got != "60822.4" {
		t.Fatalf("unexpected 22K per 8g %s", got)
	}
	if got := recs[2].PricePerKilogram.Decimal.String(); got != "7602800" {
		t.Fatalf("unexpected 22K per kg %s", got)
	}
}

func TestFeedRejectsWrongDay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"date": "2026-02-28", "prices": map[string]string{"XAG": "96"}})
	}))
	defer srv.Close()

	f := NewFeed(FeedOptions{BaseURL: srv.URL}, noopLogger())
	if _, err := f.FetchPrices(context.Background(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)); err == nil {
		t.Fatal("mismatched feed date should fail")
	}
}

func TestFeedRejectsBadPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"date": "2026-03-01", "prices": map[string]string{"XAG": "-1"}})
	}))
	defer srv.Close()

	f := NewFeed(FeedOptions{BaseURL: srv.URL}, noopLogger())
	if _, err := f.FetchPrices(context.Background(), time.Time{}); err == nil {
		t.Fatal("negative price should fail")
	}
}
