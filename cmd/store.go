package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobmap/internal/batch"
	"github.com/sells-group/jobmap/internal/store"
	"github.com/sells-group/jobmap/pkg/geocode"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "jobmap.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initGeocoder builds the provider client, wrapped in the Postgres-backed
// cache when enabled and the store can host it.
func initGeocoder(st store.Store) geocode.Client {
	timeout := time.Duration(cfg.Geocode.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := geocode.NewClient(cfg.Geocode.Provider, cfg.Geocode.Token,
		geocode.WithHTTPClient(&http.Client{Timeout: timeout}),
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithCountry(cfg.Geocode.Country),
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
		geocode.WithRetry(cfg.Geocode.MaxAttempts, 0),
	)

	if !cfg.Geocode.CacheEnabled {
		return client
	}
	pg, ok := st.(*store.PostgresStore)
	if !ok {
		zap.L().Warn("geocode cache requires the postgres store, continuing without it",
			zap.String("driver", cfg.Store.Driver))
		return client
	}
	return geocode.NewCachedClient(client, pg.Pool(), cfg.Geocode.CacheTTLDays)
}

// batchOptions maps geocode config onto worker pool options. A configured
// pacing of zero disables the sleep.
func batchOptions() batch.Options {
	pacing := time.Duration(cfg.Geocode.PacingMs) * time.Millisecond
	if pacing == 0 {
		pacing = -1
	}
	return batch.Options{Concurrency: cfg.Geocode.Concurrency, Pacing: pacing}
}

func runPacing() time.Duration {
	return batchOptions().Pacing
}
