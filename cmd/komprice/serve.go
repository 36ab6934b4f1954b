package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/LouYuanbo1/komprice/internal/api"
	"github.com/LouYuanbo1/komprice/internal/infra/persistence/postgres"
	"github.com/LouYuanbo1/komprice/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the product query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			db, err := a.database(ctx)
			if err != nil {
				return err
			}
			doc, err := a.taxonomy()
			if err != nil {
				return err
			}
			deps := api.Deps{
				Products:       postgres.NewProductRepository(db),
				Categories:     postgres.NewCategoryRepository(db),
				Tree:           doc.Tree(),
				Sites:          a.registry,
				Metrics:        a.metrics.Handler(),
				Ping:           db.PingContext,
				AllowedOrigins: a.cfg.Server.AllowedOrigins,
				Log:            a.log,
			}
			idx, err := a.listingIndex()
			if err != nil {
				return err
			}
			if idx != nil {
				deps.Listings = idx
			}

			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           api.NewRouter(a.cfg.Server.Mode, deps),
				ReadHeaderTimeout: 5 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				a.log.Info("api listening", logger.String("addr", srv.Addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
