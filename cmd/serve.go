package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jobmap/internal/api"
	"github.com/sells-group/jobmap/internal/batch"
	"github.com/sells-group/jobmap/internal/geocoderun"
	"github.com/sells-group/jobmap/internal/importer"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
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

		gc := initGeocoder(st)
		if err := gc.Configured(); err != nil {
			zap.L().Warn("geocoder not configured; lookups will return no match", zap.Error(err))
		}

		srvAPI := api.NewServer(api.Deps{
			Store:    st,
			Geocoder: gc,
			Importer: importer.New(st, batch.NewGeocoder(gc), cfg.Import.MaxRows),
			Runner: geocoderun.New(st, gc, geocoderun.Config{
				DefaultLimit: cfg.Geocode.RunDefaultLimit,
				MaxLimit:     cfg.Geocode.RunMaxLimit,
				Pacing:       runPacing(),
			}),
			CORSOrigins:   cfg.Server.CORSOrigins,
			GeocodeBatch:  batchOptions(),
			GeocodeOnLoad: cfg.Import.GeocodeOnLoad,
		})

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           srvAPI.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
