package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"metalwatch/internal/storage"
)

// StaticSource serves a fixed list.
type StaticSource []string

// Symbols implements Source.
func (s StaticSource) Symbols(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// StoreSource lists the metals present in the price store.
type StoreSource struct {
	Lister storage.MetalLister
}

// Symbols implements Source.
func (s StoreSource) Symbols(ctx context.Context) ([]string, error) {
	metals, err := s.Lister.ListMetals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list metals: %w", err)
	}
	return metals, nil
}

// HTTPOptions configure a remote symbol catalog.
type HTTPOptions struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// HTTPSource fetches symbols from a JSON endpoint returning either a bare
// array or an object with a "symbols" array.
type HTTPSource struct {
	opts   HTTPOptions
	client *resty.Client
}

// NewHTTPSource builds a remote catalog source.
func NewHTTPSource(opts HTTPOptions) *HTTPSource {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	client := resty.New().SetTimeout(opts.Timeout).SetHeader("Accept", "application/json")
	if opts.APIKey != "" {
		client.SetHeader("X-API-Key", opts.APIKey)
	}
	return &HTTPSource{opts: opts, client: client}
}

// Symbols implements Source.
func (s *HTTPSource) Symbols(ctx context.Context) ([]string, error) {
	if s.opts.URL == "" {
		return nil, errors.New("catalog url not configured")
	}
	resp, err := s.client.R().SetContext(ctx).Get(s.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("catalog status %d", resp.StatusCode())
	}
	return decodeSymbols(resp.Body())
}

func decodeSymbols(body []byte) ([]string, error) {
	var list []string
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return wrapped.Symbols, nil
}

// KV is the subset of a Redis client used by RedisMirror.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisMirror shares one upstream fetch between processes by keeping the
// symbol list in Redis for ttl.
type RedisMirror struct {
	kv       KV
	key      string
	ttl      time.Duration
	upstream Source
	logger   zerolog.Logger
}

// NewRedisMirror wraps upstream with a Redis read-through copy.
func NewRedisMirror(kv KV, key string, ttl time.Duration, upstream Source, logger zerolog.Logger) *RedisMirror {
	if key == "" {
		key = "metalwatch:catalog:symbols"
	}
	return &RedisMirror{
		kv:       kv,
		key:      key,
		ttl:      ttl,
		upstream: upstream,
		logger:   logger.With().Str("component", "catalog_redis").Logger(),
	}
}

// Symbols implements Source. Redis failures degrade to the upstream source.
func (m *RedisMirror) Symbols(ctx context.Context) ([]string, error) {
	bs, err := m.kv.Get(ctx, m.key).Bytes()
	switch {
	case err == nil:
		var symbols []string
		if jsonErr := json.Unmarshal(bs, &symbols); jsonErr == nil {
			return symbols, nil
		}
		m.logger.Warn().Str("key", m.key).Msg("ignoring undecodable cached symbols")
	case !errors.Is(err, redis.Nil):
		m.logger.Warn().Err(err).Msg("redis read failed")
	}

	symbols, err := m.upstream.Symbols(ctx)
	if err != nil {
		return nil, err
	}
	if bs, err := json.Marshal(symbols); err == nil {
		if err := m.kv.Set(ctx, m.key, bs, m.ttl).Err(); err != nil {
			m.logger.Warn().Err(err).Msg("redis write failed")
		}
	}
	return symbols, nil
}

var (
	_ Source = StaticSource(nil)
	_ Source = StoreSource{}
	_ Source = (*HTTPSource)(nil)
	_ Source = (*RedisMirror)(nil)
	_ KV     = (*redis.Client)(nil)
)
