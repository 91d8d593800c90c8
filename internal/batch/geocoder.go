// Package batch geocodes many jobs at once through a bounded worker pool.
package batch

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/jobmap/internal/address"
	"github.com/sells-group/jobmap/internal/model"
	"github.com/sells-group/jobmap/pkg/geocode"
)

const (
	// DefaultConcurrency is the worker count when Options.Concurrency is unset.
	DefaultConcurrency = 5
	// DefaultPacing is the per-worker sleep after every lookup.
	DefaultPacing = 120 * time.Millisecond
)

// AddressFunc builds the lookup string for a job.
type AddressFunc func(model.Job) string

// DefaultAddress normalizes the job's one-line address.
func DefaultAddress(j model.Job) string {
	return address.Normalize(j.AddressLine())
}

// Options tune one Run.
type Options struct {
	Concurrency int
	// Pacing is slept by a worker after each provider call. Zero means
	// DefaultPacing; a negative value disables pacing.
	Pacing time.Duration
	// Progress is called once per row, including rows that were skipped.
	// Calls are serialized.
	Progress func(done, total int)
}

// Geocoder fills in coordinates for a slice of jobs.
type Geocoder struct {
	client geocode.Client
}

// NewGeocoder returns a Geocoder backed by client.
func NewGeocoder(client geocode.Client) *Geocoder {
	return &Geocoder{client: client}
}

// Run geocodes every job that lacks usable coordinates and returns a copy
// of jobs in input order. It never fails: per-row problems are recorded in
// GeocodeStatus and counted in the summary. ctx is handed to the client
// only; a batch that has started runs to completion.
func (g *Geocoder) Run(ctx context.Context, jobs []model.Job, addressOf AddressFunc, opts Options) ([]model.Job, model.GeocodeSummary) {
	out := make([]model.Job, len(jobs))
	copy(out, jobs)
	if len(out) == 0 {
		return out, model.GeocodeSummary{}
	}

	if addressOf == nil {
		addressOf = DefaultAddress
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = DefaultConcurrency
	}
	if workers > len(out) {
		workers = len(out)
	}
	pacing := opts.Pacing
	if pacing == 0 {
		pacing = DefaultPacing
	}

	log := zap.L().With(zap.Int("jobs", len(out)), zap.Int("workers", workers))
	log.Info("batch: geocode started")

	outcomes := make([]outcome, len(out))
	indices := make(chan int, len(out))
	for i := range out {
		indices <- i
	}
	close(indices)

	var (
		mu   sync.Mutex
		done int
	)
	report := func() {
		if opts.Progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		opts.Progress(done, len(out))
	}

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			for i := range indices {
				outcomes[i] = g.geocodeOne(ctx, &out[i], addressOf)
				report()
				if outcomes[i] >= outcomeMissed && pacing > 0 {
					time.Sleep(pacing)
				}
			}
			return nil
		})
	}
	_ = eg.Wait()

	var sum model.GeocodeSummary
	for _, o := range outcomes {
		switch o {
		case outcomeMatched:
			sum.Attempted++
			sum.Success++
		case outcomeMissed, outcomeEmpty:
			sum.Attempted++
			sum.Failed++
		}
	}

	log.Info("batch: geocode complete",
		zap.Int("attempted", sum.Attempted),
		zap.Int("success", sum.Success),
		zap.Int("failed", sum.Failed),
	)
	return out, sum
}

type outcome int

const (
	outcomeCached  outcome = iota // already had coordinates
	outcomeEmpty                  // no address text
	outcomeMissed                 // provider returned nothing
	outcomeMatched
)

// geocodeOne updates j in place. Each index is owned by exactly one worker.
func (g *Geocoder) geocodeOne(ctx context.Context, j *model.Job, addressOf AddressFunc) outcome {
	if j.HasCoordinates() {
		j.NeedsGeocode = false
		j.GeocodeStatus = model.GeocodeOK
		return outcomeCached
	}

	addr := strings.TrimSpace(addressOf(*j))
	if addr == "" {
		j.Lat, j.Lng = nil, nil
		j.NeedsGeocode = false
		j.GeocodeStatus = model.GeocodeSkipped
		return outcomeEmpty
	}

	res := g.client.GeocodeOnce(ctx, addr)
	if res == nil {
		j.Lat, j.Lng = nil, nil
		j.NeedsGeocode = false
		j.GeocodeStatus = model.GeocodeNoMatch
		return outcomeMissed
	}

	lat, lng := res.Lat, res.Lng
	j.Lat, j.Lng = &lat, &lng
	if res.Zip != "" {
		j.Zip = res.Zip
	}
	j.NeedsGeocode = false
	j.GeocodeStatus = model.GeocodeOK
	return outcomeMatched
}
