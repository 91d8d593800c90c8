package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jobmap/internal/batch"
	"github.com/sells-group/jobmap/internal/importer"
	"github.com/sells-group/jobmap/internal/model"
	"github.com/sells-group/jobmap/internal/sheet"
)

var (
	importFile    string
	importMapping string
	importGeocode bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import jobs from a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		rows, err := sheet.ReadFile(ctx, importFile)
		if err != nil {
			return eris.Wrap(err, "import: read file")
		}

		mappingPath := importMapping
		if mappingPath == "" {
			mappingPath = cfg.Import.MappingFile
		}
		var mapping model.ColumnMapping
		if mappingPath != "" {
			if mapping, err = sheet.LoadMapping(mappingPath); err != nil {
				return err
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		geocodeRows := importGeocode || cfg.Import.GeocodeOnLoad
		var geocoder *batch.Geocoder
		if geocodeRows {
			gc := initGeocoder(st)
			if err := gc.Configured(); err != nil {
				return eris.Wrap(err, "import: geocoding requested")
			}
			geocoder = batch.NewGeocoder(gc)
		}

		opts := importer.Options{
			Mapping:      mapping,
			Geocode:      geocodeRows,
			GeocodeBatch: batchOptions(),
		}
		if geocodeRows {
			bar := newProgressBar(len(rows), "Geocoding rows")
			opts.GeocodeBatch.Progress = func(done, total int) {
				bar.ChangeMax(total)
				_ = bar.Set(done)
			}
		}

		res, err := importer.New(st, geocoder, cfg.Import.MaxRows).Import(ctx, rows, opts)
		for _, msg := range res.Errors {
			fmt.Fprintln(os.Stderr, msg)
		}
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("file", importFile),
			zap.Int("total", res.Total),
			zap.Int("inserted", res.Inserted),
			zap.Int("skipped", res.Skipped),
		)
		fmt.Printf("total=%d inserted=%d skipped=%d errors=%d\n",
			res.Total, res.Inserted, res.Skipped, len(res.Errors))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to CSV, TSV or XLSX file (required)")
	importCmd.Flags().StringVar(&importMapping, "mapping", "", "YAML column mapping file")
	importCmd.Flags().BoolVar(&importGeocode, "geocode", false, "geocode rows before storing them")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
