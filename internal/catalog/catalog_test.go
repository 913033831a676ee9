package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metalwatch/internal/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type countingSource struct {
	calls   int
	symbols []string
	err     error
}

func (s *countingSource) Symbols(context.Context) ([]string, error) {
	s.calls++
	return s.symbols, s.err
}

func TestCacheRefreshesOnlyWhenStale(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	src := &countingSource{symbols: []string{"xag", "XAU", " xau ", ""}}
	cache := NewCache(src, time.Minute, clock.Now, zerolog.Nop())

	assert.Nil(t, cache.Get())
	assert.True(t, cache.Stale())

	got, err := cache.RefreshIfStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"XAG", "XAU"}, got)
	assert.Equal(t, 1, src.calls)

	clock.Advance(59 * time.Second)
	_, err = cache.RefreshIfStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	clock.Advance(time.Second)
	src.symbols = []string{"XPT"}
	got, err = cache.RefreshIfStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"XPT"}, got)
	assert.Equal(t, 2, src.calls)
}

func TestCacheKeepsPreviousOnFailure(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	src := &countingSource{symbols: []string{"XAU"}}
	cache := NewCache(src, time.Minute, clock.Now, zerolog.Nop())

	_, err := cache.RefreshIfStale(context.Background())
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	src.err = errors.New("catalog down")
	got, err := cache.RefreshIfStale(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"XAU"}, got)
	assert.True(t, cache.Stale())
}

func TestCacheConcurrentReads(t *testing.T) {
	cache := NewCache(StaticSource{"XAU", "XAG"}, time.Hour, nil, zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.RefreshIfStale(context.Background())
			_ = cache.Get()
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"XAG", "XAU"}, cache.Get())
}

func TestStoreSource(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	store := storage.NewMemoryStore(
		storage.PriceRecord{Date: day, Metal: "XAU", Carat: "22K", PricePerGram: decimal.NewFromInt(7600)},
		storage.PriceRecord{Date: day, Metal: "XRH", PricePerGram: decimal.NewFromInt(12000)},
	)
	got, err := StoreSource{Lister: store}.Symbols(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"XAU", "XRH"}, got)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/list":
			_, _ = w.Write([]byte(`["XAU","XAG"]`))
		case "/wrapped":
			_, _ = w.Write([]byte(`{"symbols":["XPT"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	got, err := NewHTTPSource(HTTPOptions{URL: srv.URL + "/list", APIKey: "k"}).Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"XAU", "XAG"}, got)

	got, err = NewHTTPSource(HTTPOptions{URL: srv.URL + "/wrapped", APIKey: "k"}).Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"XPT"}, got)

	_, err = NewHTTPSource(HTTPOptions{URL: srv.URL + "/missing", APIKey: "k"}).Symbols(context.Background())
	assert.Error(t, err)

	_, err = NewHTTPSource(HTTPOptions{}).Symbols(context.Background())
	assert.Error(t, err)
}

type fakeKV struct {
	values map[string][]byte
	getErr error
	sets   int
}

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.sets++
	f.values[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func TestRedisMirrorReadThrough(t *testing.T) {
	kv := &fakeKV{values: map[string][]byte{}}
	upstream := &countingSource{symbols: []string{"XAU", "XAG"}}
	mirror := NewRedisMirror(kv, "", time.Minute, upstream, zerolog.Nop())

	got, err := mirror.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"XAU", "XAG"}, got)
	assert.Equal(t, 1, kv.sets)

	got, err = mirror.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"XAU", "XAG"}, got)
	assert.Equal(t, 1, upstream.calls)
}

func TestRedisMirrorDegradesToUpstream(t *testing.T) {
	kv := &fakeKV{values: map[string][]byte{}, getErr: errors.New("connection refused")}
	upstream := &countingSource{symbols: []string{"XPD"}}
	mirror := NewRedisMirror(kv, "k", time.Minute, upstream, zerolog.Nop())

	got, err := mirror.Symbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"XPD"}, got)
	assert.Equal(t, 1, upstream.calls)
}
