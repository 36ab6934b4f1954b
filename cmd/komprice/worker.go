package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/LouYuanbo1/komprice/internal/infra/queue"
	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/internal/service/dispatch"
)

func newWorkerCommand() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run queued scrape jobs until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			svc, err := a.scraperService(ctx)
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: a.metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.log.Error("metrics server failed", logger.Error(err))
					}
				}()
				defer srv.Close()
			}

			consumer := queue.NewConsumer(a.redisClient(), a.queueKey(), queue.DefaultPollTimeout)
			w := dispatch.NewWorker(consumer, a.planner(), svc, a.cfg.Scrape.Workers(), a.log)
			return w.Work(ctx)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address, e.g. :9100")
	return cmd
}
