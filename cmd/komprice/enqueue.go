package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LouYuanbo1/komprice/internal/infra/queue"
	"github.com/LouYuanbo1/komprice/internal/logger"
	"github.com/LouYuanbo1/komprice/internal/service/dispatch"
)

func newEnqueueCommand() *cobra.Command {
	var site, category, schedule string
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Push scrape jobs onto the Redis queue",
		Long: `Validate the jobs and push them onto the queue once, or on every tick of
--schedule (a cron spec such as "0 */6 * * *" or "@daily") until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			planner := a.planner()
			jobs, err := selectJobs(a.cfg, planner, site, category)
			if err != nil {
				return err
			}
			plans, err := planner.Plan(jobs)
			if err != nil {
				return err
			}
			jobs = dispatch.Jobs(plans)
			producer := queue.NewProducer(a.redisClient(), a.queueKey())

			if schedule == "" {
				n, err := producer.Enqueue(ctx, jobs...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d jobs, queue length %d\n", len(jobs), n)
				return nil
			}

			s := dispatch.NewScheduler(producer, a.log)
			if _, err := s.Schedule(ctx, schedule, jobs); err != nil {
				return err
			}
			s.Start()
			<-ctx.Done()
			a.log.Info("scheduler stopping", logger.String("schedule", schedule))
			<-s.Stop().Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site id; defaults to every job of the category settings file")
	cmd.Flags().StringVar(&category, "category", "", "vendor category slug (requires --site)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron spec for periodic enqueue")
	return cmd
}
