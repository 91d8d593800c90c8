// Package importer runs uploaded rows through validation, optional
// geocoding and persistence.
package importer

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobmap/internal/batch"
	"github.com/sells-group/jobmap/internal/model"
	"github.com/sells-group/jobmap/internal/store"
	"github.com/sells-group/jobmap/internal/validate"
)

// Options control one import.
type Options struct {
	Mapping model.ColumnMapping
	// Geocode runs the batch geocoder over valid rows before they are stored.
	Geocode      bool
	GeocodeBatch batch.Options
}

// Importer validates and stores job rows.
type Importer struct {
	store    store.Store
	geocoder *batch.Geocoder
	maxRows  int
}

// New returns an Importer. geocoder may be nil, in which case
// Options.Geocode is ignored.
func New(st store.Store, geocoder *batch.Geocoder, maxRows int) *Importer {
	return &Importer{store: st, geocoder: geocoder, maxRows: maxRows}
}

// Import validates raws, optionally geocodes the valid rows, and upserts
// them in a single call. Row problems are reported in the result and never
// fail the import; a persistence failure is returned as the error alongside
// the validation result.
func (im *Importer) Import(ctx context.Context, raws []model.RawRow, opts Options) (model.ImportResult, error) {
	log := zap.L().With(zap.Int("rows", len(raws)))

	vr := validate.Rows(raws, opts.Mapping, im.maxRows)
	res := model.ImportResult{
		Total:  vr.Total,
		Errors: vr.Messages(),
	}

	jobs := vr.Valid
	if opts.Geocode && im.geocoder != nil && len(jobs) > 0 {
		var sum model.GeocodeSummary
		jobs, sum = im.geocoder.Run(ctx, jobs, batch.DefaultAddress, opts.GeocodeBatch)
		res.Geocode = &sum
	}

	inserted, err := im.store.Upsert(ctx, jobs)
	if err != nil {
		res.Skipped = res.Total
		return res, eris.Wrap(err, "importer: persist jobs")
	}

	res.Inserted = len(inserted)
	res.Skipped = res.Total - res.Inserted

	log.Info("importer: import complete",
		zap.Int("valid", len(vr.Valid)),
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}
