package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jobmap/internal/batch"
	"github.com/sells-group/jobmap/internal/model"
	"github.com/sells-group/jobmap/internal/store"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocode stored jobs that still lack coordinates",
	Long:  "Loads pending jobs and geocodes them through the concurrent worker pool, writing results back to the store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("geocode"); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		retry, _ := cmd.Flags().GetBool("retry-misses")
		concurrency, _ := cmd.Flags().GetInt("concurrency")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		gc := initGeocoder(st)
		if err := gc.Configured(); err != nil {
			return eris.Wrap(err, "geocode")
		}

		if retry {
			n, err := st.RequeueNoMatch(ctx)
			if err != nil {
				return err
			}
			zap.L().Info("requeued previous misses", zap.Int("jobs", n))
		}

		jobs, err := st.PendingGeocode(ctx, limit)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs pending geocoding.")
			return nil
		}

		opts := batchOptions()
		if concurrency > 0 {
			opts.Concurrency = concurrency
		}
		bar := newProgressBar(len(jobs), "Geocoding jobs")
		opts.Progress = func(done, _ int) { _ = bar.Set(done) }

		out, sum := batch.NewGeocoder(gc).Run(ctx, jobs, nil, opts)

		for _, j := range out {
			if err := st.UpdateGeocode(ctx, j.ID, updateFor(j)); err != nil {
				return eris.Wrapf(err, "geocode: save job %s", j.ID)
			}
		}

		remaining, err := st.CountPendingGeocode(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("attempted=%d success=%d failed=%d remaining=%d\n",
			sum.Attempted, sum.Success, sum.Failed, remaining)
		return nil
	},
}

func updateFor(j model.Job) store.GeocodeUpdate {
	u := store.GeocodeUpdate{Status: j.GeocodeStatus}
	if j.GeocodeStatus == model.GeocodeOK {
		u.Lat, u.Lng, u.Zip = j.Lat, j.Lng, j.Zip
	}
	return u
}

func init() {
	geocodeCmd.Flags().Int("limit", 500, "maximum jobs to geocode")
	geocodeCmd.Flags().Int("concurrency", 0, "worker count (default from config)")
	geocodeCmd.Flags().Bool("retry-misses", false, "requeue jobs that previously returned no match")
	rootCmd.AddCommand(geocodeCmd)
}
