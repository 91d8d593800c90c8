// Package geocoderun geocodes persisted jobs that still lack coordinates,
// one at a time, for unattended server-side runs.
package geocoderun

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/jobmap/internal/batch"
	"github.com/sells-group/jobmap/internal/model"
	"github.com/sells-group/jobmap/internal/store"
	"github.com/sells-group/jobmap/pkg/geocode"
)

// Defaults for Config fields left at zero.
const (
	DefaultLimit    = 50
	DefaultMaxLimit = 500
	DefaultPacing   = 120 * time.Millisecond
)

// Config bounds a run.
type Config struct {
	DefaultLimit int
	MaxLimit     int
	Pacing       time.Duration
}

// Summary is the outcome of one run.
type Summary struct {
	model.GeocodeSummary
	Remaining int `json:"remaining"`
}

// Runner pulls pending jobs from the store and geocodes them sequentially.
type Runner struct {
	store  store.Store
	client geocode.Client
	cfg    Config
}

// New returns a Runner with zero Config fields defaulted.
func New(st store.Store, client geocode.Client, cfg Config) *Runner {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = DefaultMaxLimit
	}
	if cfg.Pacing == 0 {
		cfg.Pacing = DefaultPacing
	}
	return &Runner{store: st, client: client, cfg: cfg}
}

// ClampLimit applies the default to a non-positive limit and caps it at
// the configured maximum.
func (r *Runner) ClampLimit(limit int) int {
	if limit <= 0 {
		limit = r.cfg.DefaultLimit
	}
	if limit > r.cfg.MaxLimit {
		limit = r.cfg.MaxLimit
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

// Run geocodes up to limit pending jobs. A misconfigured client fails the
// run before any job is touched. Individual misses are counted, and a
// failed status write stops the run.
func (r *Runner) Run(ctx context.Context, limit int) (Summary, error) {
	if err := r.client.Configured(); err != nil {
		return Summary{}, eris.Wrap(err, "geocoderun: geocoder not configured")
	}
	limit = r.ClampLimit(limit)

	jobs, err := r.store.PendingGeocode(ctx, limit)
	if err != nil {
		return Summary{}, eris.Wrap(err, "geocoderun: load pending jobs")
	}

	log := zap.L().With(zap.Int("limit", limit), zap.Int("pending", len(jobs)))
	log.Info("geocoderun: run started")

	var limiter *rate.Limiter
	if r.cfg.Pacing > 0 {
		limiter = rate.NewLimiter(rate.Every(r.cfg.Pacing), 1)
	}

	var sum Summary
	for _, j := range jobs {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return sum, eris.Wrap(err, "geocoderun: wait")
			}
		}

		u := store.GeocodeUpdate{Status: model.GeocodeNoMatch}
		if j.HasCoordinates() {
			// A miss never erases coordinates the row arrived with.
			u.Lat, u.Lng = j.Lat, j.Lng
		}
		addr := batch.DefaultAddress(j)
		sum.Attempted++
		switch {
		case addr == "":
			u.Status = model.GeocodeSkipped
			sum.Failed++
		default:
			if res := r.client.GeocodeOnce(ctx, addr); res != nil {
				lat, lng := res.Lat, res.Lng
				u = store.GeocodeUpdate{Lat: &lat, Lng: &lng, Zip: res.Zip, Status: model.GeocodeOK}
				sum.Success++
			} else {
				sum.Failed++
			}
		}

		if err := r.store.UpdateGeocode(ctx, j.ID, u); err != nil {
			return sum, eris.Wrapf(err, "geocoderun: update job %s", j.ID)
		}
	}

	remaining, err := r.store.CountPendingGeocode(ctx)
	if err != nil {
		return sum, eris.Wrap(err, "geocoderun: count remaining")
	}
	sum.Remaining = remaining

	log.Info("geocoderun: run complete",
		zap.Int("attempted", sum.Attempted),
		zap.Int("success", sum.Success),
		zap.Int("failed", sum.Failed),
		zap.Int("remaining", sum.Remaining),
	)
	return sum, nil
}
