package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobmap/internal/db"
)

// CacheSchema is the DDL for the table CachedClient reads and writes.
const CacheSchema = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	address      TEXT NOT NULL,
	lat          DOUBLE PRECISION NOT NULL,
	lng          DOUBLE PRECISION NOT NULL,
	zip          TEXT,
	cached_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// cacheInsertColumns is the column list storeCache writes, in argument order.
var cacheInsertColumns = []string{"address_hash", "address", "lat", "lng", "zip", "cached_at"}

// CachedClient serves repeat lookups from the geocode_cache table and only
// calls the wrapped client on a miss. Only matches are cached so a later
// pass can still resolve an address the provider missed.
type CachedClient struct {
	next    Client
	pool    db.Pool
	ttlDays int
}

// NewCachedClient wraps next with a Postgres-backed cache. ttlDays <= 0
// keeps entries forever.
func NewCachedClient(next Client, pool db.Pool, ttlDays int) *CachedClient {
	return &CachedClient{next: next, pool: pool, ttlDays: ttlDays}
}

// Configured implements Client.
func (c *CachedClient) Configured() error {
	return c.next.Configured()
}

// GeocodeOnce implements Client.
func (c *CachedClient) GeocodeOnce(ctx context.Context, address string) *Result {
	if strings.TrimSpace(address) == "" {
		return nil
	}
	key := cacheKey(address)

	if cached, err := c.checkCache(ctx, key); err == nil {
		return cached
	}

	result := c.next.GeocodeOnce(ctx, address)
	if result != nil {
		if err := c.storeCache(ctx, key, address, result); err != nil {
			zap.L().Warn("geocode cache: store failed", zap.Error(err))
		}
	}
	return result
}

// cacheKey returns SHA-256 hex of the lowercased, whitespace-collapsed address.
func cacheKey(address string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(address), " "))
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

// checkCache looks up a cached result, respecting TTL if configured.
func (c *CachedClient) checkCache(ctx context.Context, key string) (*Result, error) {
	query := "SELECT lat, lng, zip FROM geocode_cache WHERE address_hash = $1"
	if c.ttlDays > 0 {
		query += fmt.Sprintf(" AND cached_at > now() - interval '%d days'", c.ttlDays)
	}

	var r Result
	var zip *string
	if err := c.pool.QueryRow(ctx, query, key).Scan(&r.Lat, &r.Lng, &zip); err != nil {
		return nil, err // no row or scan error; caller falls through to the provider
	}
	if zip != nil {
		r.Zip = *zip
	}

	zap.L().Debug("geocode cache hit", zap.String("key", key[:12]))
	return &r, nil
}

// storeCache upserts a successful result.
func (c *CachedClient) storeCache(ctx context.Context, key, address string, result *Result) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO geocode_cache (`+strings.Join(cacheInsertColumns, ", ")+`)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (address_hash) DO UPDATE SET
			address = EXCLUDED.address,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			zip = EXCLUDED.zip,
			cached_at = now()`,
		key, strings.TrimSpace(address), result.Lat, result.Lng, nilIfEmpty(result.Zip),
	)
	if err != nil {
		return eris.Wrap(err, "geocode: store cache")
	}
	return nil
}

// nilIfEmpty returns nil for empty strings, allowing NULL storage in Postgres.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
