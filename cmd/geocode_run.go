package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/jobmap/internal/geocoderun"
)

var geocodeRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Geocode a bounded batch of pending jobs sequentially",
	Long:  "Runs the same paced, sequential batch the API exposes at POST /api/geocode/run and prints the summary as JSON.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("geocode"); err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runner := geocoderun.New(st, initGeocoder(st), geocoderun.Config{
			DefaultLimit: cfg.Geocode.RunDefaultLimit,
			MaxLimit:     cfg.Geocode.RunMaxLimit,
			Pacing:       runPacing(),
		})
		sum, err := runner.Run(ctx, limit)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	},
}

func init() {
	geocodeRunCmd.Flags().Int("limit", 0, "jobs to attempt (default from config, capped by run_max_limit)")
	geocodeCmd.AddCommand(geocodeRunCmd)
}
