package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func rec(date, metal, carat, gram string) PriceRecord {
	return PriceRecord{Date: day(date), Metal: metal, Carat: carat, PricePerGram: decimal.RequireFromString(gram)}
}

func TestMemoryStoreOrdering(t *testing.T) {
	store := NewMemoryStore(
		rec("2026-02-21", "XAU", "18K", "5500"),
		rec("2026-02-20", "XAG", "", "95"),
		rec("2026-02-21", "XAU", "24K", "7400"),
		rec("2026-02-21", "XAU", "22K", "6800"),
	)

	got, err := store.PricesBetween(context.Background(), day("2026-02-19"), day("2026-02-22"), nil)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "XAG", got[0].Metal)
	assert.Equal(t, []string{"24K", "22K", "18K"}, []string{got[1].Carat, got[2].Carat, got[3].Carat})
}

func TestMemoryStoreMetalFilterAndBounds(t *testing.T) {
	store := NewMemoryStore(
		rec("2026-02-20", "XAG", "", "95"),
		rec("2026-02-25", "XAU", "22K", "6800"),
	)
	ctx := context.Background()

	got, err := store.PricesOn(ctx, day("2026-02-25"), []string{"XAG"})
	require.NoError(t, err)
	assert.Empty(t, got)

	oldest, newest, ok, err := store.DateBounds(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, day("2026-02-20"), oldest)
	assert.Equal(t, day("2026-02-25"), newest)

	metals, err := store.ListMetals(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"XAG", "XAU"}, metals)
}

func TestMemoryStoreEmptyAndFailure(t *testing.T) {
	store := NewMemoryStore()
	_, ok, err := store.LatestDate(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	boom := errors.New("connection refused")
	store.FailWith(boom)
	_, err = store.PricesOn(context.Background(), day("2026-02-25"), nil)
	assert.ErrorIs(t, err, boom)
}
