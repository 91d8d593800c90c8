package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/jobmap/internal/aggregate"
	"github.com/sells-group/jobmap/internal/store"
	"github.com/sells-group/jobmap/internal/validate"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print sales aggregated by zip code",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("report"); err != nil {
			return err
		}

		start, _ := cmd.Flags().GetString("start")
		end, _ := cmd.Flags().GetString("end")
		minPrice, _ := cmd.Flags().GetFloat64("min-price")
		sortBy, _ := cmd.Flags().GetString("sort")
		asc, _ := cmd.Flags().GetBool("asc")
		top, _ := cmd.Flags().GetInt("top")
		asJSON, _ := cmd.Flags().GetBool("json")

		f := store.Filter{MinPrice: minPrice}
		var err error
		if f.Start, err = parseDateFlag("start", start); err != nil {
			return err
		}
		if f.End, err = parseDateFlag("end", end); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		jobs, err := st.Select(ctx, f)
		if err != nil {
			return eris.Wrap(err, "report")
		}

		rep := aggregate.Aggregate(jobs, &aggregate.DateRange{Start: start, End: end})
		ranked := rep.Ranked(aggregate.ParseSortField(sortBy), !asc)
		if top > 0 && len(ranked) > top {
			ranked = ranked[:top]
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"totals": rep.Totals, "zips": ranked})
		}
		formatReport(os.Stdout, rep.Totals, ranked)
		return nil
	},
}

func parseDateFlag(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	d, err := validate.ParseDate(v)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "--%s", name)
	}
	return time.Parse(validate.DateLayout, d)
}

func formatReport(w io.Writer, totals aggregate.Totals, zips []aggregate.ZipMetric) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ZIP\tJOBS\tSALES\tAVG\tJOB %\tREV %\tAVG Δ %\t")
	for _, m := range zips {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.1f\t%.1f\t%+.1f\t\n",
			m.Zip, m.Jobs, m.Sales, m.Avg, m.JobShare, m.RevenueShare, m.AvgDeltaPct)
	}
	tw.Flush() //nolint:errcheck

	fmt.Fprintf(w, "\n%d jobs across %d zips, $%.2f total, $%.2f average\n",
		totals.TotalJobs, totals.Zips, totals.TotalSales, totals.OverallAvg)
}

func init() {
	reportCmd.Flags().String("start", "", "first service date to include")
	reportCmd.Flags().String("end", "", "last service date to include")
	reportCmd.Flags().Float64("min-price", 0, "ignore jobs below this price")
	reportCmd.Flags().String("sort", "sales", "sort by jobs|sales|avg|jobShare|revenueShare|avgDeltaPct")
	reportCmd.Flags().Bool("asc", false, "sort ascending")
	reportCmd.Flags().Int("top", 0, "show only the first N zips")
	reportCmd.Flags().Bool("json", false, "print JSON instead of a table")
	rootCmd.AddCommand(reportCmd)
}
