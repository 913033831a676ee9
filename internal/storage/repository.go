package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	priceColumns = `price_date,
        metal,
        COALESCE(carat, ''),
        price_per_gram::text,
        price_per_eight_grams::text,
        price_per_kilogram::text,
        created_at`

	listPricesOnSQL = `SELECT ` + priceColumns + `
    FROM metal_prices
    WHERE price_date = $1
      AND (cardinality($2::text[]) = 0 OR metal = ANY($2::text[]))
    ORDER BY metal, carat DESC NULLS FIRST;`

	listPricesBetweenSQL = `SELECT ` + priceColumns + `
    FROM metal_prices
    WHERE price_date >= $1
      AND price_date <= $2
      AND (cardinality($3::text[]) = 0 OR metal = ANY($3::text[]))
    ORDER BY price_date, metal, carat DESC NULLS FIRST;`

	latestDateSQL = `SELECT MAX(price_date) FROM metal_prices;`

	dateBoundsSQL = `SELECT MIN(price_date), MAX(price_date) FROM metal_prices;`

	listMetalsSQL = `SELECT DISTINCT metal FROM metal_prices ORDER BY metal;`

	upsertPriceSQL = `INSERT INTO metal_prices (
        metal,
        carat,
        price_date,
        price_per_gram,
        price_per_eight_grams,
        price_per_kilogram
    ) VALUES (
        $1, NULLIF($2, ''), $3, $4, $5, $6
    )
    ON CONFLICT (metal, (COALESCE(carat, '')), price_date) DO UPDATE
    SET
        price_per_gram        = EXCLUDED.price_per_gram,
        price_per_eight_grams = EXCLUDED.price_per_eight_grams,
        price_per_kilogram    = EXCLUDED.price_per_kilogram;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PriceReader is the read-only time-series accessor the assistant consumes.
type PriceReader interface {
	PricesOn(ctx context.Context, day time.Time, metals []string) ([]PriceRecord, error)
	PricesBetween(ctx context.Context, from, to time.Time, metals []string) ([]PriceRecord, error)
	LatestDate(ctx context.Context) (time.Time, bool, error)
	DateBounds(ctx context.Context) (oldest, newest time.Time, ok bool, err error)
}

// PriceWriter persists ingested prices.
type PriceWriter interface {
	UpsertPrice(ctx context.Context, rec PriceRecord) error
}

// MetalLister lists the metal codes that have at least one record.
type MetalLister interface {
	ListMetals(ctx context.Context) ([]string, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store is the PostgreSQL-backed price store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock also drops when the connection closes
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// PricesOn lists every record stored for the given day.
func (s *Store) PricesOn(ctx context.Context, day time.Time, metals []string) ([]PriceRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPricesOnSQL, Day(day), metalFilter(metals))
	if queryErr != nil {
		return nil, fmt.Errorf("list prices on: %w", queryErr)
	}
	return collectPrices(rows)
}

// PricesBetween lists records with from <= date <= to, ordered by date.
func (s *Store) PricesBetween(ctx context.Context, from, to time.Time, metals []string) ([]PriceRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPricesBetweenSQL, Day(from), Day(to), metalFilter(metals))
	if queryErr != nil {
		return nil, fmt.Errorf("list prices between: %w", queryErr)
	}
	return collectPrices(rows)
}

// LatestDate returns the most recent date with any record.
func (s *Store) LatestDate(ctx context.Context) (time.Time, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return time.Time{}, false, err
	}

	var latest *time.Time
	if scanErr := pool.QueryRow(ctx, latestDateSQL).Scan(&latest); scanErr != nil {
		return time.Time{}, false, fmt.Errorf("latest date: %w", scanErr)
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return Day(*latest), true, nil
}

// DateBounds returns the oldest and newest dates with data.
func (s *Store) DateBounds(ctx context.Context) (time.Time, time.Time, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}

	var oldest, newest *time.Time
	if scanErr := pool.QueryRow(ctx, dateBoundsSQL).Scan(&oldest, &newest); scanErr != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("date bounds: %w", scanErr)
	}
	if oldest == nil || newest == nil {
		return time.Time{}, time.Time{}, false, nil
	}
	return Day(*oldest), Day(*newest), true, nil
}

// ListMetals returns the distinct metal codes present in the store.
func (s *Store) ListMetals(ctx context.Context) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listMetalsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list metals: %w", queryErr)
	}
	metals, collectErr := pgx.CollectRows(rows, pgx.RowTo[string])
	if collectErr != nil {
		return nil, fmt.Errorf("list metals: %w", collectErr)
	}
	return metals, nil
}

// UpsertPrice persists or updates a single price record.
func (s *Store) UpsertPrice(ctx context.Context, rec PriceRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertPriceSQL,
		rec.Metal,
		rec.Carat,
		Day(rec.Date),
		rec.PricePerGram.String(),
		nullableDecimal(rec.PricePerEightGrams),
		nullableDecimal(rec.PricePerKilogram),
	)
	if execErr != nil {
		return fmt.Errorf("upsert price: %w", execErr)
	}
	return nil
}

func metalFilter(metals []string) []string {
	if metals == nil {
		return []string{}
	}
	return metals
}

func nullableDecimal(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func collectPrices(rows pgx.Rows) ([]PriceRecord, error) {
	defer rows.Close()

	records := make([]PriceRecord, 0)
	for rows.Next() {
		rec, scanErr := scanPrice(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanPrice(rows pgx.Rows) (PriceRecord, error) {
	var (
		day       time.Time
		metal     string
		carat     string
		gramStr   string
		eightStr  *string
		kiloStr   *string
		createdAt time.Time
	)

	if err := rows.Scan(&day, &metal, &carat, &gramStr, &eightStr, &kiloStr, &createdAt); err != nil {
		return PriceRecord{}, err
	}

	perGram, err := decimal.NewFromString(gramStr)
	if err != nil {
		return PriceRecord{}, fmt.Errorf("parse price per gram: %w", err)
	}
	perEight, err := parseNullable(eightStr)
	if err != nil {
		return PriceRecord{}, fmt.Errorf("parse price per eight grams: %w", err)
	}
	perKilo, err := parseNullable(kiloStr)
	if err != nil {
		return PriceRecord{}, fmt.Errorf("parse price per kilogram: %w", err)
	}

	return PriceRecord{
		Date:               Day(day),
		Metal:              metal,
		Carat:              carat,
		PricePerGram:       perGram,
		PricePerEightGrams: perEight,
		PricePerKilogram:   perKilo,
		CreatedAt:          createdAt,
	}, nil
}

func parseNullable(v *string) (decimal.NullDecimal, error) {
	if v == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

var (
	_ PriceReader    = (*Store)(nil)
	_ PriceWriter    = (*Store)(nil)
	_ MetalLister    = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
