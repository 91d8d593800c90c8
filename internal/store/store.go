// Package store persists job records and tracks their geocoding state.
package store

import (
	"context"
	"time"

	"github.com/sells-group/jobmap/internal/model"
)

// Filter narrows Select. Zero values leave a bound open.
type Filter struct {
	Start    time.Time // inclusive service_date lower bound
	End      time.Time // inclusive service_date upper bound
	MinPrice float64
}

// GeocodeUpdate is the outcome of one geocode attempt for a persisted job.
// An empty Zip leaves the stored zip untouched.
type GeocodeUpdate struct {
	Lat    *float64
	Lng    *float64
	Zip    string
	Status model.GeocodeStatus
}

// ConflictKey lists the columns that identify a duplicate job. Inserting a
// job whose key already exists is silently skipped.
var ConflictKey = []string{"name", "service_date", "price", "street", "zip"}

// Store defines the persistence interface for job records.
type Store interface {
	// Select returns jobs matching f ordered by service date.
	Select(ctx context.Context, f Filter) ([]model.Job, error)
	// Upsert inserts jobs, skipping duplicates on ConflictKey, and returns
	// the jobs that were actually inserted with their assigned IDs.
	Upsert(ctx context.Context, jobs []model.Job) ([]model.Job, error)

	// PendingGeocode returns up to limit jobs still waiting for coordinates,
	// oldest first.
	PendingGeocode(ctx context.Context, limit int) ([]model.Job, error)
	CountPendingGeocode(ctx context.Context) (int, error)
	UpdateGeocode(ctx context.Context, id string, u GeocodeUpdate) error
	// RequeueNoMatch flags every no_match job for another geocoding pass.
	RequeueNoMatch(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// pendingClause selects jobs eligible for the next geocoding pass. A job
// that was attempted and missed is not pending until it is requeued.
const pendingClause = `needs_geocode OR ((lat IS NULL OR lng IS NULL) AND geocode_status = 'pending')`
